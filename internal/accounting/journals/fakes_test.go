package journals

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memRepo struct {
	nextID    int64
	lines     map[int64]Transaction
	sequences map[string]int64
	failOn    string
}

func newMemRepo() *memRepo {
	return &memRepo{lines: map[int64]Transaction{}, sequences: map[string]int64{}}
}

func (m *memRepo) NextSequence(_ context.Context, companyID int64, t Type, year, month int) (int64, error) {
	k := FormatNumber(t, year, month, companyID)
	m.sequences[k]++
	return m.sequences[k], nil
}

func (m *memRepo) Insert(_ context.Context, t Transaction) (Transaction, error) {
	if m.failOn == "insert" {
		return Transaction{}, errInjected
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	m.lines[t.ID] = t
	return t, nil
}

func (m *memRepo) Get(_ context.Context, companyID, id int64) (Transaction, error) {
	t, ok := m.lines[id]
	if !ok || t.CompanyID != companyID {
		return Transaction{}, shared.NotFound("transaction", id)
	}
	return t, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, companyID, id int64) (Transaction, error) {
	return m.Get(ctx, companyID, id)
}

func (m *memRepo) ListGroup(_ context.Context, companyID int64, groupID uuid.UUID, _ bool) ([]Transaction, error) {
	var out []Transaction
	for _, t := range m.lines {
		if t.CompanyID == companyID && t.GroupID == groupID {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, shared.NotFound("journal entry", groupID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, t Transaction) error {
	if m.failOn == "update" {
		return errInjected
	}
	m.lines[t.ID] = t
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	delete(m.lines, id)
	return nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Transaction, error) {
	var out []Transaction
	for _, t := range m.lines {
		if t.CompanyID == f.CompanyID && (f.Status == "" || t.Status == f.Status) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memRepo) CountPending(_ context.Context, companyID int64, year, month int) (int, error) {
	n := 0
	for _, t := range m.lines {
		if t.CompanyID == companyID && t.FiscalYear == year && t.FiscalMonth == month && t.Status.Pending() {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) PostedYears(_ context.Context, companyID int64, before int) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, t := range m.lines {
		if t.CompanyID == companyID && t.FiscalYear < before && t.Status == StatusPosted && !seen[t.FiscalYear] {
			seen[t.FiscalYear] = true
			out = append(out, t.FiscalYear)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (m *memRepo) HasTransactions(_ context.Context, accountID int64) (bool, error) {
	for _, t := range m.lines {
		if t.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

type errString string

func (e errString) Error() string { return string(e) }

const errInjected = errString("injected failure")

type accountBook map[int64]accounts.Account

func (b accountBook) Resolve(_ context.Context, companyID, id int64) (accounts.Account, error) {
	a, ok := b[id]
	if !ok || a.CompanyID != companyID {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

// periodBook implements both the validator's checker and the posting gate.
type periodBook struct {
	closed map[[2]int]bool
	gated  int
}

func (p *periodBook) IsClosed(_ context.Context, _ int64, year, month int) (bool, error) {
	return p.closed[[2]int{year, month}], nil
}

func (p *periodBook) EnsureOpenForPosting(_ context.Context, _ int64, date time.Time) error {
	p.gated++
	pos := periods.PositionOf(date)
	if p.closed[[2]int{pos.Year, pos.Month}] {
		return shared.Violation(shared.RulePeriodClosed, "%04d-%02d is closed", pos.Year, pos.Month)
	}
	return nil
}

// balanceBook applies deltas with the same sign rule as the balance ledger.
type balanceBook struct {
	book     accountBook
	balances map[int64]decimal.Decimal
	failFor  int64
}

func (b *balanceBook) ApplyPosting(_ context.Context, accountID int64, amount decimal.Decimal, side accounts.Side) (decimal.Decimal, error) {
	if accountID == b.failFor {
		return decimal.Zero, shared.ErrConcurrencyConflict
	}
	a := b.book[accountID]
	delta := amount
	if side != a.NormalSide {
		delta = amount.Neg()
	}
	b.balances[accountID] = b.balances[accountID].Add(delta)
	return b.balances[accountID], nil
}

func (b *balanceBook) ReversePosting(ctx context.Context, accountID int64, amount decimal.Decimal, side accounts.Side) (decimal.Decimal, error) {
	return b.ApplyPosting(ctx, accountID, amount, side.Opposite())
}

// snapshotTx restores the fakes when the closure fails, standing in for a rollback.
type snapshotTx struct {
	repo     *memRepo
	balances *balanceBook
}

func (s snapshotTx) InTx(ctx context.Context, fn func(context.Context) error) error {
	lines := make(map[int64]Transaction, len(s.repo.lines))
	for k, v := range s.repo.lines {
		lines[k] = v
	}
	balances := make(map[int64]decimal.Decimal, len(s.balances.balances))
	for k, v := range s.balances.balances {
		balances[k] = v
	}
	if err := fn(ctx); err != nil {
		s.repo.lines = lines
		s.balances.balances = balances
		return err
	}
	return nil
}

type idemStub map[string]bool

func (i idemStub) CheckAndInsert(_ context.Context, key, module string) error {
	if i[module+key] {
		return internalShared.ErrIdempotencyConflict
	}
	i[module+key] = true
	return nil
}

type auditStub struct{ actions []string }

func (a *auditStub) Record(_ context.Context, log internalShared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type eventStub struct{ events []shared.Event }

func (e *eventStub) Publish(_ context.Context, ev shared.Event) error {
	e.events = append(e.events, ev)
	return nil
}

type metricsStub struct {
	transitions map[string]int
	rejections  map[string]int
}

func (m *metricsStub) ObserveTransition(to string, n int) { m.transitions[to] += n }
func (m *metricsStub) ObserveRejection(reason string)     { m.rejections[reason]++ }

const (
	cashID     int64 = 10
	salesID    int64 = 20
	parentID   int64 = 30
	inactiveID int64 = 40
	expenseID  int64 = 50
)

var today = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc      *Service
	repo     *memRepo
	periods  *periodBook
	balances *balanceBook
	audit    *auditStub
	events   *eventStub
	metrics  *metricsStub
}

func newFixture() fixture {
	book := accountBook{
		cashID:     {ID: cashID, CompanyID: 1, Code: "1100", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit, IsLeaf: true, IsActive: true},
		salesID:    {ID: salesID, CompanyID: 1, Code: "4100", Type: accounts.AccountTypeRevenue, NormalSide: accounts.SideCredit, IsLeaf: true, IsActive: true},
		parentID:   {ID: parentID, CompanyID: 1, Code: "1000", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit, IsLeaf: false, IsActive: true},
		inactiveID: {ID: inactiveID, CompanyID: 1, Code: "1900", Type: accounts.AccountTypeAsset, NormalSide: accounts.SideDebit, IsLeaf: true, IsActive: false},
		expenseID:  {ID: expenseID, CompanyID: 1, Code: "6100", Type: accounts.AccountTypeExpense, NormalSide: accounts.SideDebit, IsLeaf: true, IsActive: true},
	}
	f := fixture{
		repo:     newMemRepo(),
		periods:  &periodBook{closed: map[[2]int]bool{}},
		audit:    &auditStub{},
		events:   &eventStub{},
		metrics:  &metricsStub{transitions: map[string]int{}, rejections: map[string]int{}},
		balances: &balanceBook{book: book, balances: map[int64]decimal.Decimal{}},
	}
	validator := NewValidator(book, f.periods)
	f.svc = NewService(Dependencies{
		Repo:        f.repo,
		Tx:          snapshotTx{repo: f.repo, balances: f.balances},
		Validator:   validator,
		Ledger:      f.balances,
		Periods:     f.periods,
		Audit:       f.audit,
		Events:      f.events,
		Idempotency: idemStub{},
		Metrics:     f.metrics,
	})
	f.svc.WithNow(func() time.Time { return today })
	return f
}

func cashSale(amount string, date time.Time) []LineInput {
	return []LineInput{
		{AccountID: cashID, Debit: d(amount), Credit: decimal.Zero, Date: date, Description: "cash sale"},
		{AccountID: salesID, Debit: decimal.Zero, Credit: d(amount), Date: date, Description: "cash sale"},
	}
}
