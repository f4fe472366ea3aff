package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Status enumerates ledger line lifecycle values.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// transitions lists the allowed target states per source state.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusApproved},
	StatusApproved: {StatusPosted},
	StatusPosted:   {StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Pending reports whether the line still awaits posting.
func (s Status) Pending() bool { return s == StatusDraft || s == StatusApproved }

// Type classifies a submission and drives its number prefix.
type Type string

const (
	TypeGeneral    Type = "GENERAL"
	TypeSales      Type = "SALES"
	TypePurchase   Type = "PURCHASE"
	TypeReceipt    Type = "RECEIPT"
	TypePayment    Type = "PAYMENT"
	TypeAdjustment Type = "ADJUSTMENT"
	TypeClosing    Type = "CLOSING"
)

var prefixes = map[Type]string{
	TypeGeneral:    "GJ",
	TypeSales:      "SJ",
	TypePurchase:   "PJ",
	TypeReceipt:    "RV",
	TypePayment:    "PV",
	TypeAdjustment: "AJ",
	TypeClosing:    "CJ",
}

// Prefix returns the document number prefix.
func (t Type) Prefix() string { return prefixes[t] }

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := prefixes[t]
	return ok
}

// Submittable reports whether callers may submit this type directly.
// Adjustments and closings have dedicated operations.
func (t Type) Submittable() bool {
	return t.Valid() && t != TypeAdjustment && t != TypeClosing
}

// Transaction is one ledger line.
type Transaction struct {
	ID                    int64
	CompanyID             int64
	Number                string
	GroupID               uuid.UUID
	Type                  Type
	Date                  time.Time
	AccountID             int64
	Debit                 decimal.Decimal
	Credit                decimal.Decimal
	Description           string
	Memo                  string
	FiscalYear            int
	FiscalMonth           int
	FiscalQuarter         int
	Status                Status
	CreatedBy             int64
	CreatedAt             time.Time
	ApprovedBy            *int64
	ApprovedAt            *time.Time
	PostedBy              *int64
	PostedAt              *time.Time
	CancelledBy           *int64
	CancelledAt           *time.Time
	CancelReason          string
	OriginalTransactionID *int64
	UpdatedAt             time.Time
}

// Side returns the side carrying the line's amount.
func (t Transaction) Side() accounts.Side {
	if t.Debit.IsPositive() {
		return accounts.SideDebit
	}
	return accounts.SideCredit
}

// Amount returns the strictly positive amount of the line.
func (t Transaction) Amount() decimal.Decimal {
	if t.Debit.IsPositive() {
		return t.Debit
	}
	return t.Credit
}

// TransactionRef identifies a line created by a submission.
type TransactionRef struct {
	ID      int64     `json:"id"`
	Number  string    `json:"number"`
	GroupID uuid.UUID `json:"group_id"`
	Status  Status    `json:"status"`
}

func refOf(t Transaction) TransactionRef {
	return TransactionRef{ID: t.ID, Number: t.Number, GroupID: t.GroupID, Status: t.Status}
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	CompanyID int64
	Status    Status
	AccountID int64
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
