package journals

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func ruleOf(t *testing.T, err error) shared.Rule {
	t.Helper()
	rule, ok := shared.RuleOf(err)
	require.True(t, ok, "expected business rule violation, got %v", err)
	return rule
}

func submitAndPost(t *testing.T, f fixture, lines []LineInput) []Transaction {
	t.Helper()
	ctx := context.Background()
	refs, err := f.svc.Submit(ctx, SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: lines})
	require.NoError(t, err)
	_, err = f.svc.ApproveEntry(ctx, 1, refs[0].GroupID, 6)
	require.NoError(t, err)
	posted, err := f.svc.PostEntry(ctx, 1, refs[0].GroupID, 7)
	require.NoError(t, err)
	return posted
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusApproved))
	assert.True(t, CanTransition(StatusApproved, StatusPosted))
	assert.True(t, CanTransition(StatusPosted, StatusCancelled))
	assert.False(t, CanTransition(StatusDraft, StatusPosted))
	assert.False(t, CanTransition(StatusCancelled, StatusPosted))
	assert.False(t, CanTransition(StatusPosted, StatusDraft))
	assert.False(t, CanTransition(StatusApproved, StatusCancelled))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "GJ-202401-00001", FormatNumber(TypeGeneral, 2024, 1, 1))
	assert.Equal(t, "CJ-202412-00042", FormatNumber(TypeClosing, 2024, 12, 42))
	assert.Equal(t, "RV", TypeReceipt.Prefix())
	assert.False(t, TypeClosing.Submittable())
}

func TestSubmitStoresDraftGroup(t *testing.T) {
	f := newFixture()
	refs, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeSales, CreatedBy: 5, Lines: cashSale("250.50", today)})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, refs[0].GroupID, refs[1].GroupID)
	assert.Equal(t, "SJ-202403-00001", refs[0].Number)
	assert.Equal(t, "SJ-202403-00002", refs[1].Number)

	stored := f.repo.lines[refs[0].ID]
	assert.Equal(t, StatusDraft, stored.Status)
	assert.Equal(t, 1, stored.FiscalQuarter)
	assert.Equal(t, 3, stored.FiscalMonth)
	assert.Empty(t, f.balances.balances)
	assert.Equal(t, 2, f.metrics.transitions["DRAFT"])
}

func TestSubmitUnbalancedCreatesNothing(t *testing.T) {
	f := newFixture()
	lines := cashSale("100000", today)
	lines[1].Credit = d("90000")
	_, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: lines})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, f.repo.lines)
	assert.Equal(t, 1, f.metrics.rejections["validation"])
}

func TestSubmitRejectsReservedTypes(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeClosing, CreatedBy: 5, Lines: cashSale("1", today)})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSubmitIdempotencyKey(t *testing.T) {
	f := newFixture()
	in := SubmitInput{CompanyID: 1, Type: TypeSales, CreatedBy: 5, Lines: cashSale("10", today), IdempotencyKey: "inv-1", IdempotencyModule: "AR"}
	_, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Len(t, f.repo.lines, 2)
}

func TestCashSaleScenario(t *testing.T) {
	f := newFixture()
	posted := submitAndPost(t, f, cashSale("100000", today))
	for _, line := range posted {
		assert.Equal(t, StatusPosted, line.Status)
		assert.Equal(t, int64(7), *line.PostedBy)
		assert.Equal(t, int64(6), *line.ApprovedBy)
	}
	assert.True(t, f.balances.balances[cashID].Equal(d("100000")))
	assert.True(t, f.balances.balances[salesID].Equal(d("100000")))
	require.Len(t, f.events.events, 1)
	assert.Equal(t, shared.EventPosted, f.events.events[0].Kind)
	assert.ElementsMatch(t, []int64{cashID, salesID}, f.events.events[0].AccountIDs)
}

func TestPostRequiresApproval(t *testing.T) {
	f := newFixture()
	refs, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: cashSale("1", today)})
	require.NoError(t, err)
	_, err = f.svc.Post(context.Background(), 1, refs[0].ID, 7)
	assert.Equal(t, shared.RuleIllegalTransition, ruleOf(t, err))
	assert.Empty(t, f.balances.balances)

	_, err = f.svc.Approve(context.Background(), 1, refs[0].ID, 6)
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), 1, refs[0].ID, 6)
	assert.Equal(t, shared.RuleIllegalTransition, ruleOf(t, err))

	line, err := f.svc.Post(context.Background(), 1, refs[0].ID, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, line.Status)
	assert.Equal(t, 1, f.periods.gated)
}

func TestPostIntoClosedPeriodIsRejected(t *testing.T) {
	f := newFixture()
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	refs, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: cashSale("100", jan)})
	require.NoError(t, err)
	_, err = f.svc.ApproveEntry(context.Background(), 1, refs[0].GroupID, 6)
	require.NoError(t, err)

	f.periods.closed[[2]int{2024, 1}] = true
	_, err = f.svc.PostEntry(context.Background(), 1, refs[0].GroupID, 7)
	assert.Equal(t, shared.RulePeriodClosed, ruleOf(t, err))
	for _, ref := range refs {
		assert.Equal(t, StatusApproved, f.repo.lines[ref.ID].Status)
	}
	assert.Empty(t, f.balances.balances)
}

func TestPostEntryIsAllOrNothing(t *testing.T) {
	f := newFixture()
	refs, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: cashSale("100", today)})
	require.NoError(t, err)
	_, err = f.svc.ApproveEntry(context.Background(), 1, refs[0].GroupID, 6)
	require.NoError(t, err)

	f.balances.failFor = salesID
	_, err = f.svc.PostEntry(context.Background(), 1, refs[0].GroupID, 7)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.True(t, f.balances.balances[cashID].IsZero())
	assert.Equal(t, StatusApproved, f.repo.lines[refs[0].ID].Status)
}

func TestCancelReversesDelta(t *testing.T) {
	f := newFixture()
	posted := submitAndPost(t, f, cashSale("100", today))

	_, err := f.svc.Cancel(context.Background(), CancelInput{CompanyID: 1, TransactionID: posted[0].ID, ActorID: 8})
	assert.ErrorIs(t, err, shared.ErrValidation)

	line, err := f.svc.Cancel(context.Background(), CancelInput{CompanyID: 1, TransactionID: posted[0].ID, ActorID: 8, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, line.Status)
	assert.Equal(t, "duplicate", line.CancelReason)
	assert.True(t, f.balances.balances[cashID].IsZero())
	assert.Contains(t, f.repo.lines, posted[0].ID)

	_, err = f.svc.Cancel(context.Background(), CancelInput{CompanyID: 1, TransactionID: posted[0].ID, ActorID: 8, Reason: "again"})
	assert.Equal(t, shared.RuleIllegalTransition, ruleOf(t, err))
}

func TestCancelInClosedPeriodIsRejected(t *testing.T) {
	f := newFixture()
	posted := submitAndPost(t, f, cashSale("100", today))
	f.periods.closed[[2]int{2024, 3}] = true
	_, err := f.svc.Cancel(context.Background(), CancelInput{CompanyID: 1, TransactionID: posted[0].ID, ActorID: 8, Reason: "late"})
	assert.Equal(t, shared.RulePeriodClosed, ruleOf(t, err))
	assert.True(t, f.balances.balances[cashID].Equal(d("100")))
}

func TestDeleteOnlyUnposted(t *testing.T) {
	f := newFixture()
	refs, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: cashSale("5", today)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(context.Background(), 1, refs[0].ID, 5))
	assert.NotContains(t, f.repo.lines, refs[0].ID)

	posted := submitAndPost(t, f, cashSale("5", today))
	err = f.svc.Delete(context.Background(), 1, posted[0].ID, 5)
	assert.Equal(t, shared.RuleIllegalTransition, ruleOf(t, err))

	err = f.svc.Delete(context.Background(), 2, posted[0].ID, 5)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAdjustingEntryReferencesPostedOriginal(t *testing.T) {
	f := newFixture()
	draft, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: cashSale("5", today)})
	require.NoError(t, err)
	_, err = f.svc.CreateAdjustingEntry(context.Background(), AdjustInput{CompanyID: 1, OriginalTransactionID: draft[0].ID, CreatedBy: 5, Lines: cashSale("1", today)})
	assert.Equal(t, shared.RuleOriginalNotPosted, ruleOf(t, err))

	_, err = f.svc.CreateAdjustingEntry(context.Background(), AdjustInput{CompanyID: 1, OriginalTransactionID: 999, CreatedBy: 5, Lines: cashSale("1", today)})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	posted := submitAndPost(t, f, cashSale("100", today))
	before := f.repo.lines[posted[0].ID]
	refs, err := f.svc.CreateAdjustingEntry(context.Background(), AdjustInput{
		CompanyID: 1, OriginalTransactionID: posted[0].ID, CreatedBy: 5,
		Lines: []LineInput{
			{AccountID: expenseID, Debit: d("3"), Credit: decimal.Zero, Date: today},
			{AccountID: cashID, Debit: decimal.Zero, Credit: d("3"), Date: today},
		},
	})
	require.NoError(t, err)
	for _, ref := range refs {
		line := f.repo.lines[ref.ID]
		assert.Equal(t, TypeAdjustment, line.Type)
		assert.Equal(t, StatusDraft, line.Status)
		assert.Equal(t, posted[0].ID, *line.OriginalTransactionID)
		assert.Contains(t, line.Number, "AJ-202403-")
	}
	assert.Equal(t, before, f.repo.lines[posted[0].ID])
}

func TestReversingEntryMirrorsGroup(t *testing.T) {
	f := newFixture()
	posted := submitAndPost(t, f, cashSale("100", today))
	refs, err := f.svc.CreateReversingEntry(context.Background(), ReverseInput{CompanyID: 1, OriginalTransactionID: posted[1].ID, CreatedBy: 5})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	_, err = f.svc.ApproveEntry(context.Background(), 1, refs[0].GroupID, 6)
	require.NoError(t, err)
	_, err = f.svc.PostEntry(context.Background(), 1, refs[0].GroupID, 7)
	require.NoError(t, err)
	assert.True(t, f.balances.balances[cashID].IsZero())
	assert.True(t, f.balances.balances[salesID].IsZero())

	first := f.repo.lines[refs[0].ID]
	assert.Equal(t, "Reversal of "+posted[1].Number, first.Description)
}

func TestPostClosingEntryBypassesGate(t *testing.T) {
	f := newFixture()
	f.periods.closed[[2]int{2023, 12}] = true
	groupID, refs, err := f.svc.PostClosingEntry(context.Background(), ClosingEntry{
		CompanyID: 1,
		Date:      time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		ActorID:   9,
		Lines: []ClosingLine{
			{AccountID: salesID, Debit: d("40"), Credit: decimal.Zero},
			{AccountID: cashID, Debit: decimal.Zero, Credit: d("40")},
		},
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, groupID, refs[0].GroupID)
	assert.Equal(t, StatusPosted, refs[0].Status)
	assert.Equal(t, "CJ-202312-00001", refs[0].Number)
	assert.Equal(t, 0, f.periods.gated)
	assert.True(t, f.balances.balances[salesID].Equal(d("-40")))
	assert.Contains(t, f.audit.actions, "journal.closing")

	_, _, err = f.svc.PostClosingEntry(context.Background(), ClosingEntry{CompanyID: 1, Date: today, ActorID: 9, Lines: []ClosingLine{
		{AccountID: salesID, Debit: d("40"), Credit: decimal.Zero},
	}})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRollbackOnInsertFailure(t *testing.T) {
	f := newFixture()
	f.repo.failOn = "insert"
	_, err := f.svc.Submit(context.Background(), SubmitInput{CompanyID: 1, Type: TypeGeneral, CreatedBy: 5, Lines: cashSale("1", today)})
	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, f.repo.lines)
}
