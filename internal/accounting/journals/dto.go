package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LineInput describes one line of a submission.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Date        time.Time
	Description string
	Memo        string
}

// SubmitInput groups the lines of one journal entry.
type SubmitInput struct {
	CompanyID int64
	Type      Type
	CreatedBy int64
	Lines     []LineInput
	// IdempotencyKey makes retried submissions from integrations safe.
	IdempotencyKey    string
	IdempotencyModule string
}

func (in SubmitInput) validateHeader() error {
	v := &shared.ValidationError{}
	if in.CompanyID <= 0 {
		v.Add(shared.EntryLevel, "company_id", "company required")
	}
	if in.CreatedBy <= 0 {
		v.Add(shared.EntryLevel, "created_by", "actor required")
	}
	if !in.Type.Submittable() {
		v.Add(shared.EntryLevel, "type", "type %q cannot be submitted directly", in.Type)
	}
	return v.OrNil()
}

// AdjustInput creates an adjusting entry for a posted line.
type AdjustInput struct {
	CompanyID             int64
	OriginalTransactionID int64
	CreatedBy             int64
	Lines                 []LineInput
}

// ReverseInput mirrors the posted lines of an original group.
type ReverseInput struct {
	CompanyID             int64
	OriginalTransactionID int64
	CreatedBy             int64
	// Date defaults to the original line's date.
	Date        *time.Time
	Description string
}

// CancelInput cancels a posted line.
type CancelInput struct {
	CompanyID     int64
	TransactionID int64
	ActorID       int64
	Reason        string
}

// ClosingLine is one line of a year-end closing entry.
type ClosingLine struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// ClosingEntry is inserted directly as POSTED by year-end closing.
type ClosingEntry struct {
	CompanyID   int64
	Date        time.Time
	ActorID     int64
	Description string
	Lines       []ClosingLine
}
