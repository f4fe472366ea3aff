package journals

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountResolver resolves company-scoped accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, companyID, accountID int64) (accounts.Account, error)
}

// PeriodChecker reports whether a fiscal month rejects postings.
type PeriodChecker interface {
	IsClosed(ctx context.Context, companyID int64, year, month int) (bool, error)
}

// Validator rejects malformed or unbalanced entries before they are stored.
type Validator struct {
	accounts AccountResolver
	periods  PeriodChecker
	now      func() time.Time
}

func NewValidator(resolver AccountResolver, checker PeriodChecker) *Validator {
	return &Validator{accounts: resolver, periods: checker, now: time.Now}
}

func (v *Validator) WithNow(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Validate checks every line and returns a *shared.ValidationError listing all
// failures, or a plain error when a lookup itself failed.
func (v *Validator) Validate(ctx context.Context, companyID int64, lines []LineInput) error {
	issues := &shared.ValidationError{}
	if len(lines) == 0 {
		issues.Add(shared.EntryLevel, "lines", "entry has no lines")
		return issues
	}
	today := dateOnly(v.now())
	resolved := map[int64]error{}
	closed := map[periods.Position]bool{}
	totalDebit, totalCredit := decimal.Zero, decimal.Zero

	for i, line := range lines {
		if line.Debit.IsNegative() {
			issues.Add(i, "debit", "must not be negative")
		}
		if line.Credit.IsNegative() {
			issues.Add(i, "credit", "must not be negative")
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			issues.Add(i, "amount", "exactly one of debit or credit must be positive")
		}
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)

		if err := v.checkAccount(ctx, companyID, line.AccountID, resolved); err != nil {
			var single *shared.ValidationError
			if !errors.As(err, &single) {
				return err
			}
			for _, issue := range single.Issues {
				issues.Add(i, issue.Field, "%s", issue.Message)
			}
		}

		if line.Date.IsZero() {
			issues.Add(i, "date", "date required")
			continue
		}
		date := dateOnly(line.Date)
		if date.After(today) {
			issues.Add(i, "date", "%s is in the future", date.Format("2006-01-02"))
		}
		pos := periods.PositionOf(date)
		pos.Quarter = 0
		isClosed, ok := closed[pos]
		if !ok {
			var err error
			isClosed, err = v.periods.IsClosed(ctx, companyID, pos.Year, pos.Month)
			if err != nil {
				return err
			}
			closed[pos] = isClosed
		}
		if isClosed {
			issues.Add(i, "date", "fiscal period %04d-%02d is closed", pos.Year, pos.Month)
		}
	}

	if !totalDebit.Equal(totalCredit) {
		issues.Add(shared.EntryLevel, "lines", "debits %s do not equal credits %s", totalDebit.String(), totalCredit.String())
	}
	return issues.OrNil()
}

// checkAccount memoises lookups per entry; a ValidationError describes a line issue.
func (v *Validator) checkAccount(ctx context.Context, companyID, accountID int64, seen map[int64]error) error {
	if err, ok := seen[accountID]; ok {
		return err
	}
	err := v.accountIssue(ctx, companyID, accountID)
	seen[accountID] = err
	return err
}

func (v *Validator) accountIssue(ctx context.Context, companyID, accountID int64) error {
	if accountID <= 0 {
		return shared.Invalid("account_id", "account required")
	}
	account, err := v.accounts.Resolve(ctx, companyID, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Invalid("account_id", "account %d does not exist", accountID)
		}
		return err
	}
	if !account.IsActive {
		return shared.Invalid("account_id", "account %s is inactive", account.Code)
	}
	if !account.IsLeaf {
		return shared.Invalid("account_id", "account %s is not a leaf account", account.Code)
	}
	return nil
}
