package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func leaf(id int64, code string, t accounts.AccountType, opening, debit, credit string) AccountBalance {
	return AccountBalance{
		AccountID: id, Code: code, Name: code, Type: t, NormalSide: t.DefaultSide(),
		IsLeaf: true, TrackBalance: true, Opening: d(opening), Debit: d(debit), Credit: d(credit),
	}
}

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		leaf(1, "1100", accounts.AccountTypeAsset, "1000", "200", "150"),
		leaf(2, "1200", accounts.AccountTypeAsset, "500", "100", "50"),
		leaf(3, "2100", accounts.AccountTypeLiability, "1500", "50", "150"),
		{AccountID: 9, Code: "1000", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit, TrackBalance: true},
	}

	tb := BuildTrialBalance(balances)
	require.Len(t, tb.Groups, 2)
	assert.Equal(t, accounts.AccountTypeAsset, tb.Groups[0].Type)
	assert.Len(t, tb.Groups[0].Accounts, 2, "parent accounts are not listed")
	assert.True(t, d("350").Equal(tb.TotalDebit))
	assert.True(t, d("350").Equal(tb.TotalCredit))
	assert.True(t, d("1600").Equal(tb.TotalClosingDebit))
	assert.True(t, d("1600").Equal(tb.TotalClosingCredit))
	assert.True(t, tb.IsBalanced)

	cash := tb.Groups[0].Accounts[0]
	assert.True(t, d("1050").Equal(cash.Closing))
	assert.True(t, d("1050").Equal(cash.ClosingDebit))
	assert.True(t, cash.ClosingCredit.IsZero())
}

func TestBuildTrialBalanceSkipsUntrackedAndFlagsImbalance(t *testing.T) {
	untracked := leaf(4, "1900", accounts.AccountTypeAsset, "0", "999", "0")
	untracked.TrackBalance = false
	tb := BuildTrialBalance([]AccountBalance{
		leaf(1, "1100", accounts.AccountTypeAsset, "0", "100", "0"),
		leaf(2, "4100", accounts.AccountTypeRevenue, "0", "0", "90"),
		untracked,
	})
	assert.False(t, tb.IsBalanced)
	assert.True(t, d("100").Equal(tb.TotalDebit))
}

func TestClosingColumnsFlipNegativeBalances(t *testing.T) {
	overdrawn := leaf(1, "1100", accounts.AccountTypeAsset, "10", "0", "30")
	debit, credit := overdrawn.ClosingColumns()
	assert.True(t, debit.IsZero())
	assert.True(t, d("20").Equal(credit))

	payable := leaf(2, "2100", accounts.AccountTypeLiability, "0", "40", "10")
	debit, credit = payable.ClosingColumns()
	assert.True(t, d("30").Equal(debit))
	assert.True(t, credit.IsZero())
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss([]AccountBalance{
		leaf(1, "4000", accounts.AccountTypeRevenue, "0", "0", "1200"),
		leaf(2, "5000", accounts.AccountTypeExpense, "0", "300", "0"),
		leaf(3, "5100", accounts.AccountTypeExpense, "0", "200", "0"),
		leaf(4, "1100", accounts.AccountTypeAsset, "0", "1200", "500"),
	})
	assert.True(t, d("1200").Equal(pl.Revenue.Total))
	assert.True(t, d("500").Equal(pl.Expense.Total))
	assert.True(t, d("700").Equal(pl.NetIncome))
	assert.Len(t, pl.Expense.Accounts, 2)
}

func TestBuildBalanceSheet(t *testing.T) {
	bs := BuildBalanceSheet([]AccountBalance{
		leaf(1, "1000", accounts.AccountTypeAsset, "0", "100", "20"),
		leaf(2, "2000", accounts.AccountTypeLiability, "0", "10", "40"),
		leaf(3, "3000", accounts.AccountTypeEquity, "500", "0", "0"),
		leaf(4, "4000", accounts.AccountTypeRevenue, "0", "0", "70"),
	})
	assert.True(t, d("80").Equal(bs.Assets.Total))
	assert.True(t, d("30").Equal(bs.Liabilities.Total))
	assert.True(t, d("500").Equal(bs.Equity.Total))
	assert.True(t, d("70").Equal(bs.CurrentEarnings))
	assert.True(t, d("600").Equal(bs.TotalLiabilitiesAndEquity))
}

func TestBalanceVerificationAfterCashSale(t *testing.T) {
	balances := []AccountBalance{
		leaf(1, "1100", accounts.AccountTypeAsset, "0", "100000", "0"),
		leaf(2, "4100", accounts.AccountTypeRevenue, "0", "0", "100000"),
	}
	v := BuildBalanceVerification(balances, d("100000"), d("100000"))
	assert.True(t, d("100000").Equal(v.TotalAssets))
	assert.True(t, d("100000").Equal(v.CurrentEarnings))
	assert.True(t, d("100000").Equal(v.TotalEquity))
	assert.True(t, v.BalanceDifference.IsZero())
	assert.True(t, v.IsBalanced)
}

func TestBalanceVerificationRollsUpHierarchyAndContras(t *testing.T) {
	parent := int64(10)
	balances := []AccountBalance{
		{AccountID: parent, Code: "1000", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit},
		leaf(11, "1100", accounts.AccountTypeAsset, "500", "0", "0"),
		leaf(12, "1500", accounts.AccountTypeAsset, "200", "0", "0"),
		leaf(31, "3100", accounts.AccountTypeEquity, "600", "0", "0"),
	}
	balances[1].ParentID = &parent
	balances[2].ParentID = &parent
	// accumulated depreciation: asset type carried on the credit side
	balances[2].NormalSide = accounts.SideCredit
	balances[2].Opening = d("100")

	v := BuildBalanceVerification(balances, decimal.Zero, decimal.Zero)
	assert.True(t, d("400").Equal(v.TotalAssets))
	assert.True(t, d("-200").Equal(v.BalanceDifference))
	assert.False(t, v.IsBalanced)
}

func TestBuildGeneralLedgerRunsBalance(t *testing.T) {
	account := accounts.Account{ID: 1, Code: "4100", NormalSide: accounts.SideCredit}
	gl := BuildGeneralLedger(account, d("50"), []LedgerLine{
		{TransactionID: 1, Credit: d("100"), Debit: decimal.Zero},
		{TransactionID: 2, Debit: d("30"), Credit: decimal.Zero},
	})
	require.Len(t, gl.Rows, 2)
	assert.True(t, d("150").Equal(gl.Rows[0].Balance))
	assert.True(t, d("120").Equal(gl.Rows[1].Balance))
	assert.True(t, d("120").Equal(gl.Closing))
	assert.True(t, d("30").Equal(gl.TotalDebit))
	assert.True(t, d("100").Equal(gl.TotalCredit))
}
