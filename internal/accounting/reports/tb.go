// Package reports derives read-only views from posted ledger lines.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// AccountBalance is an account together with its aggregated movements for a window.
// Opening and Closing are expressed on the account's normal side.
type AccountBalance struct {
	AccountID    int64
	ParentID     *int64
	Code         string
	Name         string
	Type         accounts.AccountType
	NormalSide   accounts.Side
	IsLeaf       bool
	TrackBalance bool
	Opening      decimal.Decimal
	Debit        decimal.Decimal
	Credit       decimal.Decimal
}

// Closing computes the closing balance for the account.
func (a AccountBalance) Closing() decimal.Decimal {
	if a.NormalSide == accounts.SideCredit {
		return a.Opening.Add(a.Credit).Sub(a.Debit)
	}
	return a.Opening.Add(a.Debit).Sub(a.Credit)
}

// ClosingColumns splits the closing balance into debit and credit columns.
// A negative balance lands on the side opposite to the normal one.
func (a AccountBalance) ClosingColumns() (debit, credit decimal.Decimal) {
	closing := a.Closing()
	onDebit := a.NormalSide != accounts.SideCredit
	if closing.IsNegative() {
		closing = closing.Neg()
		onDebit = !onDebit
	}
	if onDebit {
		return closing, decimal.Zero
	}
	return decimal.Zero, closing
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	AccountID     int64           `json:"account_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Opening       decimal.Decimal `json:"opening"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Closing       decimal.Decimal `json:"closing"`
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`
}

// TrialBalanceGroup aggregates the accounts of one type.
type TrialBalanceGroup struct {
	Type          accounts.AccountType  `json:"type"`
	Accounts      []TrialBalanceAccount `json:"accounts"`
	Debit         decimal.Decimal       `json:"debit"`
	Credit        decimal.Decimal       `json:"credit"`
	ClosingDebit  decimal.Decimal       `json:"closing_debit"`
	ClosingCredit decimal.Decimal       `json:"closing_credit"`
}

// TrialBalance lists every tracked leaf account for a date window.
type TrialBalance struct {
	CompanyID          int64               `json:"company_id"`
	Start              time.Time           `json:"start"`
	End                time.Time           `json:"end"`
	Groups             []TrialBalanceGroup `json:"groups"`
	TotalDebit         decimal.Decimal     `json:"total_debit"`
	TotalCredit        decimal.Decimal     `json:"total_credit"`
	TotalClosingDebit  decimal.Decimal     `json:"total_closing_debit"`
	TotalClosingCredit decimal.Decimal     `json:"total_closing_credit"`
	IsBalanced         bool                `json:"is_balanced"`
}

// BuildTrialBalance groups tracked leaf balances by account type in statement order.
// Period movements and closing columns must both balance.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[accounts.AccountType]*TrialBalanceGroup)
	for _, acc := range balances {
		if !acc.IsLeaf || !acc.TrackBalance {
			continue
		}
		grp, ok := groups[acc.Type]
		if !ok {
			grp = &TrialBalanceGroup{Type: acc.Type}
			groups[acc.Type] = grp
		}
		closingDebit, closingCredit := acc.ClosingColumns()
		row := TrialBalanceAccount{
			AccountID:     acc.AccountID,
			Code:          acc.Code,
			Name:          acc.Name,
			Opening:       acc.Opening,
			Debit:         acc.Debit,
			Credit:        acc.Credit,
			Closing:       acc.Closing(),
			ClosingDebit:  closingDebit,
			ClosingCredit: closingCredit,
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.ClosingDebit = grp.ClosingDebit.Add(closingDebit)
		grp.ClosingCredit = grp.ClosingCredit.Add(closingCredit)
	}

	result := TrialBalance{Groups: []TrialBalanceGroup{}}
	for _, t := range accounts.Types {
		grp, ok := groups[t]
		if !ok {
			continue
		}
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
		result.TotalClosingDebit = result.TotalClosingDebit.Add(grp.ClosingDebit)
		result.TotalClosingCredit = result.TotalClosingCredit.Add(grp.ClosingCredit)
	}
	result.IsBalanced = result.TotalDebit.Equal(result.TotalCredit) &&
		result.TotalClosingDebit.Equal(result.TotalClosingCredit)
	return result
}
