package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type ledgerStub struct {
	submitted []journals.SubmitInput
	approved  []uuid.UUID
	posted    []uuid.UUID
	keys      map[string]bool
	postErr   error
}

func (l *ledgerStub) Submit(_ context.Context, in journals.SubmitInput) ([]journals.TransactionRef, error) {
	if l.keys[in.IdempotencyModule+in.IdempotencyKey] {
		return nil, shared.ErrIdempotencyConflict
	}
	l.keys[in.IdempotencyModule+in.IdempotencyKey] = true
	l.submitted = append(l.submitted, in)
	group := uuid.New()
	refs := make([]journals.TransactionRef, len(in.Lines))
	for i := range refs {
		refs[i] = journals.TransactionRef{ID: int64(i + 1), GroupID: group, Status: journals.StatusDraft}
	}
	return refs, nil
}

func (l *ledgerStub) ApproveEntry(_ context.Context, _ int64, groupID uuid.UUID, _ int64) ([]journals.Transaction, error) {
	l.approved = append(l.approved, groupID)
	return nil, nil
}

func (l *ledgerStub) PostEntry(_ context.Context, _ int64, groupID uuid.UUID, _ int64) ([]journals.Transaction, error) {
	if l.postErr != nil {
		return nil, l.postErr
	}
	l.posted = append(l.posted, groupID)
	return nil, nil
}

type mappingStub map[string]int64

func (m mappingStub) Get(_ context.Context, companyID int64, module, key string) (mappings.AccountMapping, error) {
	id, ok := m[module+"/"+key]
	if !ok || companyID != 1 {
		return mappings.AccountMapping{}, shared.ErrMappingNotFound
	}
	return mappings.AccountMapping{CompanyID: companyID, Module: module, Key: key, AccountID: id}, nil
}

type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

var issued = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func newHooks() (*Hooks, *ledgerStub) {
	ledger := &ledgerStub{keys: map[string]bool{}}
	maps := mappingStub{
		"SALES/sales.invoice.ar":      1100,
		"SALES/sales.invoice.revenue": 4100,
		"SALES/sales.invoice.tax":     2300,
		"AP/ap.invoice.expense":       6100,
		"AP/ap.invoice.inventory":     1300,
		"AP/ap.invoice.ap":            2100,
		"AP/ap.payment.ap":            2100,
		"AP/ap.payment.cash":          1000,
		"AR/ar.receipt.ar":            1100,
		"AR/ar.receipt.cash":          1000,
	}
	return NewHooks(ledger, maps, directTx{}, 99, nil), ledger
}

func sum(lines []journals.LineInput) (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

func TestSalesInvoiceBooksBalancedEntryAndPosts(t *testing.T) {
	hooks, ledger := newHooks()
	err := hooks.HandleSalesInvoicePosted(context.Background(), SalesInvoicePostedEvent{
		ID: 7, CompanyID: 1, Number: "INV-7", Subtotal: decimal.RequireFromString("100"), Tax: decimal.RequireFromString("11"), IssuedAt: issued,
	})
	require.NoError(t, err)
	require.Len(t, ledger.submitted, 1)
	in := ledger.submitted[0]
	assert.Equal(t, journals.TypeSales, in.Type)
	assert.Equal(t, int64(99), in.CreatedBy)
	assert.Equal(t, "SINV:7", in.IdempotencyKey)
	require.Len(t, in.Lines, 3)
	debit, credit := sum(in.Lines)
	assert.True(t, debit.Equal(credit))
	assert.True(t, decimal.RequireFromString("111").Equal(debit))
	assert.Len(t, ledger.approved, 1)
	assert.Len(t, ledger.posted, 1)
}

func TestRepeatedDocumentIsSkipped(t *testing.T) {
	hooks, ledger := newHooks()
	evt := SupplierInvoicePostedEvent{ID: 3, CompanyID: 1, Number: "BILL-3", Total: decimal.RequireFromString("50"), PostedAt: issued}
	require.NoError(t, hooks.HandleSupplierInvoicePosted(context.Background(), evt))
	require.NoError(t, hooks.HandleSupplierInvoicePosted(context.Background(), evt))
	assert.Len(t, ledger.submitted, 1)
	assert.Equal(t, int64(6100), ledger.submitted[0].Lines[0].AccountID)
}

func TestSupplierInvoiceWithGoodsDebitsInventory(t *testing.T) {
	hooks, ledger := newHooks()
	require.NoError(t, hooks.HandleSupplierInvoicePosted(context.Background(), SupplierInvoicePostedEvent{
		ID: 4, CompanyID: 1, GoodsReceived: true, Total: decimal.RequireFromString("20"), PostedAt: issued,
	}))
	assert.Equal(t, int64(1300), ledger.submitted[0].Lines[0].AccountID)
	assert.Equal(t, journals.TypePurchase, ledger.submitted[0].Type)
}

func TestPaymentDirections(t *testing.T) {
	hooks, ledger := newHooks()
	amount := decimal.RequireFromString("30")
	require.NoError(t, hooks.HandlePaymentPosted(context.Background(), PaymentPostedEvent{ID: 1, CompanyID: 1, Direction: PaymentIncoming, Amount: amount, PaidAt: issued}))
	require.NoError(t, hooks.HandlePaymentPosted(context.Background(), PaymentPostedEvent{ID: 1, CompanyID: 1, Direction: PaymentOutgoing, Amount: amount, PaidAt: issued}))
	require.Len(t, ledger.submitted, 2)

	receipt := ledger.submitted[0]
	assert.Equal(t, journals.TypeReceipt, receipt.Type)
	assert.Equal(t, int64(1000), receipt.Lines[0].AccountID)
	assert.True(t, amount.Equal(receipt.Lines[0].Debit))

	payment := ledger.submitted[1]
	assert.Equal(t, journals.TypePayment, payment.Type)
	assert.Equal(t, int64(1000), payment.Lines[1].AccountID)
	assert.True(t, amount.Equal(payment.Lines[1].Credit))

	err := hooks.HandlePaymentPosted(context.Background(), PaymentPostedEvent{ID: 2, CompanyID: 1, Direction: "SIDEWAYS", Amount: amount, PaidAt: issued})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestMissingMappingSurfaces(t *testing.T) {
	hooks, ledger := newHooks()
	err := hooks.HandleSalesInvoicePosted(context.Background(), SalesInvoicePostedEvent{
		ID: 8, CompanyID: 2, Subtotal: decimal.RequireFromString("10"), IssuedAt: issued,
	})
	assert.True(t, errors.Is(err, shared.ErrMappingNotFound))
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.Empty(t, ledger.submitted)
}

func TestPostFailureIsReturned(t *testing.T) {
	hooks, ledger := newHooks()
	ledger.postErr = shared.Violation(shared.RulePeriodClosed, "closed")
	err := hooks.HandleSupplierInvoicePosted(context.Background(), SupplierInvoicePostedEvent{
		ID: 9, CompanyID: 1, Total: decimal.RequireFromString("5"), PostedAt: issued,
	})
	rule, ok := shared.RuleOf(err)
	require.True(t, ok)
	assert.Equal(t, shared.RulePeriodClosed, rule)
}

func TestZeroAmountsAreIgnored(t *testing.T) {
	hooks, ledger := newHooks()
	require.NoError(t, hooks.HandleSalesInvoicePosted(context.Background(), SalesInvoicePostedEvent{ID: 1, CompanyID: 1, IssuedAt: issued}))
	require.NoError(t, hooks.HandlePaymentPosted(context.Background(), PaymentPostedEvent{ID: 1, CompanyID: 1, Direction: PaymentOutgoing, PaidAt: issued}))
	assert.Empty(t, ledger.submitted)
}
