package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// statementAmount expresses a closing balance on the natural side of the
// account's type, so contra accounts reduce their section.
func statementAmount(a AccountBalance) decimal.Decimal {
	closing := a.Closing()
	side := a.NormalSide
	if !side.Valid() {
		side = a.Type.DefaultSide()
	}
	if side != a.Type.DefaultSide() {
		return closing.Neg()
	}
	return closing
}

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	CurrentEarnings           decimal.Decimal     `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
}

// BuildBalanceSheet aggregates leaf balances into assets, liabilities, and equity
// sections. Unclosed revenue less expense is carried as current earnings.
func BuildBalanceSheet(balances []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets", Accounts: []BalanceSheetAccount{}}
	liabilities := BalanceSheetSection{Label: "Liabilities", Accounts: []BalanceSheetAccount{}}
	equity := BalanceSheetSection{Label: "Equity", Accounts: []BalanceSheetAccount{}}
	earnings := decimal.Zero

	for _, acc := range balances {
		if !acc.IsLeaf {
			continue
		}
		amount := statementAmount(acc)
		row := BalanceSheetAccount{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name, Balance: amount}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(amount)
		case accounts.AccountTypeLiability:
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(amount)
		case accounts.AccountTypeEquity:
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(amount)
		case accounts.AccountTypeRevenue:
			earnings = earnings.Add(amount)
		case accounts.AccountTypeExpense:
			earnings = earnings.Sub(amount)
		}
	}

	for _, s := range []*BalanceSheetSection{&assets, &liabilities, &equity} {
		rows := s.Accounts
		sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	}

	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentEarnings:           earnings,
		TotalLiabilitiesAndEquity: liabilities.Total.Add(equity.Total).Add(earnings),
	}
}

// TypeTotals holds hierarchy totals keyed by account type.
type TypeTotals map[accounts.AccountType]decimal.Decimal

// RollupByType rolls leaf statement amounts up the account tree and sums the
// root accounts of each type.
func RollupByType(balances []AccountBalance) TypeTotals {
	nodes := make([]accounts.Account, 0, len(balances))
	leaves := make(map[int64]decimal.Decimal)
	known := make(map[int64]bool, len(balances))
	for _, b := range balances {
		known[b.AccountID] = true
		nodes = append(nodes, accounts.Account{ID: b.AccountID, ParentID: b.ParentID, IsLeaf: b.IsLeaf, Type: b.Type})
		if b.IsLeaf {
			leaves[b.AccountID] = statementAmount(b)
		}
	}
	rolled := accounts.Rollup(nodes, leaves)

	totals := TypeTotals{}
	for _, t := range accounts.Types {
		totals[t] = decimal.Zero
	}
	for _, n := range nodes {
		if n.ParentID != nil && known[*n.ParentID] {
			continue
		}
		totals[n.Type] = totals[n.Type].Add(rolled[n.ID])
	}
	return totals
}

// BalanceVerification checks assets = liabilities + equity at a date.
type BalanceVerification struct {
	CompanyID         int64           `json:"company_id"`
	AsOf              time.Time       `json:"as_of"`
	TotalAssets       decimal.Decimal `json:"total_assets"`
	TotalLiabilities  decimal.Decimal `json:"total_liabilities"`
	Equity            decimal.Decimal `json:"equity"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalExpense      decimal.Decimal `json:"total_expense"`
	CurrentEarnings   decimal.Decimal `json:"current_earnings"`
	TotalEquity       decimal.Decimal `json:"total_equity"`
	BalanceDifference decimal.Decimal `json:"balance_difference"`
	IsBalanced        bool            `json:"is_balanced"`
	PostedDebit       decimal.Decimal `json:"posted_debit"`
	PostedCredit      decimal.Decimal `json:"posted_credit"`
	Sheet             BalanceSheet    `json:"sheet"`
}

// BuildBalanceVerification evaluates the accounting equation over balances whose
// Closing is the balance at the verification date.
func BuildBalanceVerification(balances []AccountBalance, postedDebit, postedCredit decimal.Decimal) BalanceVerification {
	totals := RollupByType(balances)
	earnings := totals[accounts.AccountTypeRevenue].Sub(totals[accounts.AccountTypeExpense])
	totalEquity := totals[accounts.AccountTypeEquity].Add(earnings)
	diff := totals[accounts.AccountTypeAsset].Sub(totals[accounts.AccountTypeLiability].Add(totalEquity))
	return BalanceVerification{
		TotalAssets:       totals[accounts.AccountTypeAsset],
		TotalLiabilities:  totals[accounts.AccountTypeLiability],
		Equity:            totals[accounts.AccountTypeEquity],
		TotalRevenue:      totals[accounts.AccountTypeRevenue],
		TotalExpense:      totals[accounts.AccountTypeExpense],
		CurrentEarnings:   earnings,
		TotalEquity:       totalEquity,
		BalanceDifference: diff,
		IsBalanced:        diff.IsZero(),
		PostedDebit:       postedDebit,
		PostedCredit:      postedCredit,
		Sheet:             BuildBalanceSheet(balances),
	}
}
