package accounting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type chartReader interface {
	Resolve(ctx context.Context, companyID, accountID int64) (accounts.Account, error)
	RetainedEarnings(ctx context.Context, companyID int64) (accounts.Account, error)
}

type balanceSource interface {
	Balances(ctx context.Context, companyID int64, w reports.Window) ([]reports.AccountBalance, error)
}

type closingPoster interface {
	PostClosingEntry(ctx context.Context, entry journals.ClosingEntry) (uuid.UUID, []journals.TransactionRef, error)
}

// yearCloser zeroes revenue and expense leaves into retained earnings.
type yearCloser struct {
	chart    chartReader
	balances balanceSource
	poster   closingPoster
}

// ClosingLines builds the lines that bring every revenue and expense leaf to
// zero, balanced by a single retained earnings line. Net income is revenue
// less expense for the balances given.
func ClosingLines(balances []reports.AccountBalance, retainedEarningsID int64) ([]journals.ClosingLine, decimal.Decimal) {
	var lines []journals.ClosingLine
	debit, credit, netIncome := decimal.Zero, decimal.Zero, decimal.Zero
	for _, b := range balances {
		if !b.IsLeaf || !b.Type.Temporary() {
			continue
		}
		closing := b.Closing()
		if closing.IsZero() {
			continue
		}
		normal := b.NormalSide
		if !normal.Valid() {
			normal = b.Type.DefaultSide()
		}
		side := normal.Opposite()
		if closing.IsNegative() {
			side = normal
		}
		amount := closing.Abs()
		line := journals.ClosingLine{AccountID: b.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
		if side == accounts.SideDebit {
			line.Debit = amount
			debit = debit.Add(amount)
		} else {
			line.Credit = amount
			credit = credit.Add(amount)
		}
		lines = append(lines, line)

		// revenue raises income on the credit side, expense lowers it on the debit side
		if normal == accounts.SideCredit {
			netIncome = netIncome.Add(closing)
		} else {
			netIncome = netIncome.Sub(closing)
		}
	}
	if len(lines) == 0 {
		return nil, netIncome
	}
	re := journals.ClosingLine{AccountID: retainedEarningsID, Debit: decimal.Zero, Credit: decimal.Zero}
	switch diff := debit.Sub(credit); {
	case diff.IsPositive():
		re.Credit = diff
	case diff.IsNegative():
		re.Debit = diff.Neg()
	default:
		return lines, netIncome
	}
	return append(lines, re), netIncome
}

func (c yearCloser) retainedEarnings(ctx context.Context, in periods.CloseYearInput) (accounts.Account, error) {
	if in.RetainedEarningsAccountID == nil {
		return c.chart.RetainedEarnings(ctx, in.CompanyID)
	}
	a, err := c.chart.Resolve(ctx, in.CompanyID, *in.RetainedEarningsAccountID)
	if err != nil {
		return accounts.Account{}, err
	}
	if a.Type != accounts.AccountTypeEquity || !a.Postable() {
		return accounts.Account{}, shared.Violation(shared.RuleRetainedEarnings,
			"account %s must be an active equity leaf to receive the year result", a.Code)
	}
	return a, nil
}

// CloseYear runs inside the period controller's closing transaction.
func (c yearCloser) CloseYear(ctx context.Context, in periods.CloseYearInput) (periods.ClosingSummary, error) {
	re, err := c.retainedEarnings(ctx, in)
	if err != nil {
		return periods.ClosingSummary{}, err
	}
	yearEnd := periods.YearEnd(in.Year)
	balances, err := c.balances.Balances(ctx, in.CompanyID, reports.Window{End: yearEnd})
	if err != nil {
		return periods.ClosingSummary{}, fmt.Errorf("accounting: year-end balances: %w", err)
	}
	lines, netIncome := ClosingLines(balances, re.ID)
	summary := periods.ClosingSummary{NetIncome: netIncome, RetainedEarningsAccountID: re.ID}
	if len(lines) == 0 {
		return summary, nil
	}
	groupID, refs, err := c.poster.PostClosingEntry(ctx, journals.ClosingEntry{
		CompanyID:   in.CompanyID,
		Date:        yearEnd,
		ActorID:     in.ActorID,
		Description: fmt.Sprintf("Closing entry FY%d", in.Year),
		Lines:       lines,
	})
	if err != nil {
		return periods.ClosingSummary{}, err
	}
	summary.GroupID = groupID
	summary.Lines = len(refs)
	return summary, nil
}
