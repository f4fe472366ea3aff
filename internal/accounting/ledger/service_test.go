package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type movement struct {
	accountID     int64
	date          time.Time
	debit, credit decimal.Decimal
}

type fakeStore struct {
	accounts  map[int64]*accounts.Account
	movements []movement
	staleOnce bool
}

func (f *fakeStore) Resolve(_ context.Context, companyID, id int64) (accounts.Account, error) {
	a, ok := f.accounts[id]
	if !ok || a.CompanyID != companyID {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return *a, nil
}

func (f *fakeStore) LockAccount(_ context.Context, id int64) (BalanceRow, error) {
	a, ok := f.accounts[id]
	if !ok {
		return BalanceRow{}, shared.NotFound("account", id)
	}
	return BalanceRow{AccountID: a.ID, CompanyID: a.CompanyID, Type: a.Type, NormalSide: a.NormalSide, Balance: a.CurrentBalance, Version: a.Version}, nil
}

func (f *fakeStore) UpdateBalance(_ context.Context, id int64, balance decimal.Decimal, version int64) error {
	a := f.accounts[id]
	if f.staleOnce || a.Version != version {
		f.staleOnce = false
		return shared.ErrConcurrencyConflict
	}
	a.CurrentBalance = balance
	a.Version++
	return nil
}

func (f *fakeStore) SubtreeBalances(_ context.Context, companyID int64, path string, side accounts.Side) (decimal.Decimal, decimal.Decimal, error) {
	opening, current := decimal.Zero, decimal.Zero
	for _, a := range f.accounts {
		if a.CompanyID != companyID || !a.IsLeaf || !strings.HasPrefix(a.Path, path) {
			continue
		}
		if a.NormalSide == side {
			opening, current = opening.Add(a.OpeningBalance), current.Add(a.CurrentBalance)
		} else {
			opening, current = opening.Sub(a.OpeningBalance), current.Sub(a.CurrentBalance)
		}
	}
	return opening, current, nil
}

func (f *fakeStore) SubtreePostedDelta(_ context.Context, companyID int64, path string, side accounts.Side, asOf *time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range f.movements {
		a := f.accounts[m.accountID]
		if a.CompanyID != companyID || !strings.HasPrefix(a.Path, path) {
			continue
		}
		if asOf != nil && m.date.After(*asOf) {
			continue
		}
		total = total.Add(LineDelta(side, m.debit, m.credit))
	}
	return total, nil
}

type directTx struct{ reads *int }

func (directTx) InTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

func (t directTx) InReadTx(ctx context.Context, fn func(context.Context) error) error {
	if t.reads != nil {
		*t.reads++
	}
	return fn(ctx)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture() (*Service, *fakeStore) {
	parent := int64(1)
	store := &fakeStore{accounts: map[int64]*accounts.Account{
		1: {ID: 1, CompanyID: 1, Code: "1000", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit, Path: "/1/", Version: 1},
		2: {ID: 2, CompanyID: 1, Code: "1100", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit, ParentID: &parent, Path: "/1/2/", IsLeaf: true, Version: 1, OpeningBalance: d("50"), CurrentBalance: d("50")},
		3: {ID: 3, CompanyID: 1, Code: "1200", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit, ParentID: &parent, Path: "/1/3/", IsLeaf: true, Version: 1},
		4: {ID: 4, CompanyID: 1, Code: "4000", Type: accounts.AccountTypeRevenue, NormalSide: accounts.SideCredit, Path: "/4/", IsLeaf: true, Version: 1},
	}}
	return NewService(store, store, directTx{}), store
}

func TestSignedDelta(t *testing.T) {
	assert.True(t, SignedDelta(accounts.SideDebit, d("10"), accounts.SideDebit).Equal(d("10")))
	assert.True(t, SignedDelta(accounts.SideDebit, d("10"), accounts.SideCredit).Equal(d("-10")))
	assert.True(t, SignedDelta(accounts.SideCredit, d("10"), accounts.SideCredit).Equal(d("10")))
	assert.True(t, LineDelta(accounts.SideCredit, d("3"), d("10")).Equal(d("7")))
}

func TestApplyAndReversePostingRoundTrip(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()

	bal, err := svc.ApplyPosting(ctx, 4, d("100.00"), accounts.SideCredit)
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("100")))

	bal, err = svc.ApplyPosting(ctx, 2, d("0.10"), accounts.SideCredit)
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("49.90")))

	_, err = svc.ReversePosting(ctx, 2, d("0.10"), accounts.SideCredit)
	require.NoError(t, err)
	assert.True(t, store.accounts[2].CurrentBalance.Equal(d("50")))
	assert.Equal(t, int64(3), store.accounts[2].Version)
}

func TestApplyPostingRejectsBadInput(t *testing.T) {
	svc, _ := newFixture()
	_, err := svc.ApplyPosting(context.Background(), 2, d("0"), accounts.SideDebit)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ApplyPosting(context.Background(), 2, d("1"), "SIDEWAYS")
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ApplyPosting(context.Background(), 99, d("1"), accounts.SideDebit)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyPostingSurfacesVersionConflict(t *testing.T) {
	svc, store := newFixture()
	store.staleOnce = true
	_, err := svc.ApplyPosting(context.Background(), 2, d("1"), accounts.SideDebit)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.True(t, store.accounts[2].CurrentBalance.Equal(d("50")))
}

func TestBalanceAsOfAndCurrentBalanceRollUp(t *testing.T) {
	svc, store := newFixture()
	ctx := context.Background()
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	store.movements = []movement{
		{accountID: 2, date: jan, debit: d("20"), credit: decimal.Zero},
		{accountID: 3, date: feb, debit: d("5"), credit: decimal.Zero},
		{accountID: 2, date: feb, debit: decimal.Zero, credit: d("7.5")},
	}
	store.accounts[2].CurrentBalance = d("62.5")
	store.accounts[3].CurrentBalance = d("5")

	got, err := svc.BalanceAsOf(ctx, 1, 2, jan)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("70")), got.String())

	got, err = svc.BalanceAsOf(ctx, 1, 2, time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, got.Equal(d("50")))

	got, err = svc.BalanceAsOf(ctx, 1, 1, feb)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("67.5")), got.String())

	current, err := svc.CurrentBalance(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, current.Equal(d("67.5")))

	_, err = svc.CurrentBalance(ctx, 2, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	parent := int64(1)
	store.accounts[5] = &accounts.Account{
		ID: 5, CompanyID: 1, Code: "1900", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideCredit,
		ParentID: &parent, Path: "/1/5/", IsLeaf: true, Version: 1, OpeningBalance: d("20"), CurrentBalance: d("25"),
	}
	store.movements = append(store.movements, movement{accountID: 5, date: feb, debit: decimal.Zero, credit: d("5")})

	got, err = svc.BalanceAsOf(ctx, 1, 5, feb)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("25")), got.String())

	got, err = svc.BalanceAsOf(ctx, 1, 1, jan)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("50")), got.String())

	got, err = svc.BalanceAsOf(ctx, 1, 1, feb)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("42.5")), got.String())

	current, err = svc.CurrentBalance(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, current.Equal(d("42.5")), current.String())

	rec, err := svc.Reconcile(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, rec.Consistent(), rec.Difference.String())
}

func TestReconcile(t *testing.T) {
	svc, store := newFixture()
	reads := 0
	svc.tx = directTx{reads: &reads}
	store.movements = []movement{{accountID: 2, date: time.Now(), debit: d("10"), credit: decimal.Zero}}
	store.accounts[2].CurrentBalance = d("60")

	rec, err := svc.Reconcile(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())

	store.accounts[2].CurrentBalance = d("61")
	rec, err = svc.Reconcile(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, rec.Consistent())
	assert.True(t, rec.Difference.Equal(d("1")))
	assert.Equal(t, 2, reads)

	_, err = svc.Reconcile(context.Background(), 2, 2)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
