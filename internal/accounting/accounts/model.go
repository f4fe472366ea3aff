package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Types lists the account types in statement order.
var Types = []AccountType{AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DefaultSide returns the normal balance side for the type.
func (t AccountType) DefaultSide() Side {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return SideDebit
	}
	return SideCredit
}

// Temporary reports whether balances of this type are closed at year end.
func (t AccountType) Temporary() bool {
	return t == AccountTypeRevenue || t == AccountTypeExpense
}

// Side is the debit or credit side of a posting.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Valid reports whether s is DEBIT or CREDIT.
func (s Side) Valid() bool { return s == SideDebit || s == SideCredit }

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// CategoryRetainedEarnings is reserved for the year-end closing target.
const CategoryRetainedEarnings = "RETAINED_EARNINGS"

// Account models a chart of accounts node.
type Account struct {
	ID             int64
	CompanyID      int64
	Code           string
	Name           string
	Type           AccountType
	Category       string
	NormalSide     Side
	ParentID       *int64
	Level          int
	Path           string
	IsLeaf         bool
	IsActive       bool
	TrackBalance   bool
	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Postable reports whether lines may be booked against the account.
func (a Account) Postable() bool {
	return a.IsActive && a.IsLeaf
}

// CreateAccountInput describes a new chart node.
type CreateAccountInput struct {
	CompanyID      int64           `json:"company_id" validate:"required,gt=0"`
	Code           string          `json:"code" validate:"required,max=32"`
	Name           string          `json:"name" validate:"required,max=160"`
	Type           AccountType     `json:"type" validate:"required"`
	Category       string          `json:"category" validate:"max=64"`
	NormalSide     Side            `json:"normal_side"`
	ParentID       *int64          `json:"parent_id"`
	TrackBalance   *bool           `json:"track_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ActorID        int64           `json:"-"`
}

// Validate normalises and checks the input.
func (in *CreateAccountInput) Validate() error {
	v := &shared.ValidationError{}
	// NFC so composed and decomposed spellings collide on the unique code index
	in.Code = norm.NFC.String(strings.TrimSpace(in.Code))
	in.Name = norm.NFC.String(strings.TrimSpace(in.Name))
	in.Category = strings.ToUpper(strings.TrimSpace(in.Category))
	if in.CompanyID <= 0 {
		v.Add(shared.EntryLevel, "company_id", "company required")
	}
	if in.Code == "" {
		v.Add(shared.EntryLevel, "code", "code required")
	}
	if in.Name == "" {
		v.Add(shared.EntryLevel, "name", "name required")
	}
	if !in.Type.Valid() {
		v.Add(shared.EntryLevel, "type", "unknown account type %q", in.Type)
	}
	if in.NormalSide == "" && in.Type.Valid() {
		in.NormalSide = in.Type.DefaultSide()
	}
	if in.NormalSide != "" && !in.NormalSide.Valid() {
		v.Add(shared.EntryLevel, "normal_side", "must be DEBIT or CREDIT")
	}
	if in.Category == CategoryRetainedEarnings && in.Type != AccountTypeEquity {
		v.Add(shared.EntryLevel, "category", "retained earnings must be an equity account")
	}
	if in.OpeningBalance.IsNegative() {
		v.Add(shared.EntryLevel, "opening_balance", "must not be negative")
	}
	return v.OrNil()
}

// MoveInput re-parents an account. A nil parent makes it a root.
type MoveInput struct {
	CompanyID int64
	AccountID int64
	ParentID  *int64
	ActorID   int64
}
