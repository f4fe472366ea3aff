package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Options configures the ledger facade.
type Options struct {
	Pool        *pgxpool.Pool
	MaxAttempts int
	Events      shared.EventPublisher
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Service wires the chart of accounts, the lifecycle engine, the balance
// ledger, the period controller and reporting over one Postgres pool.
type Service struct {
	pool        *pgxpool.Pool
	tx          *db.Transactor
	logger      *slog.Logger
	accounts    *accounts.Service
	journals    *journals.Service
	ledger      *ledger.Service
	periods     *periods.Service
	reports     *reports.Service
	mappings    mappings.Repository
	idempotency *internalShared.IdempotencyStore
}

// NewService builds every component and connects the year closer.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var (
		tx          = db.NewTransactor(opts.Pool, opts.MaxAttempts)
		audit       = internalShared.NewAuditLogger(opts.Pool)
		idempotency = internalShared.NewIdempotencyStore(opts.Pool)
		journalRepo = journals.NewRepository(opts.Pool)
		reportRepo  = reports.NewRepository(opts.Pool)
	)

	chart := accounts.NewService(accounts.NewRepository(opts.Pool), journalRepo, tx, audit).WithLogger(logger)
	balances := ledger.NewService(ledger.NewRepository(opts.Pool), chart, tx)
	controller := periods.NewService(periods.Dependencies{
		Repo:   periods.NewRepository(opts.Pool),
		Lines:  journalRepo,
		Tx:     tx,
		Audit:  audit,
		Events: opts.Events,
		Logger: logger,
	})
	engine := journals.NewService(journals.Dependencies{
		Repo:        journalRepo,
		Tx:          tx,
		Validator:   journals.NewValidator(chart, controller),
		Ledger:      balances,
		Periods:     controller,
		Audit:       audit,
		Events:      opts.Events,
		Idempotency: idempotency,
		Metrics:     opts.Metrics,
		Logger:      logger,
	})
	controller.SetCloser(yearCloser{chart: chart, balances: reportRepo, poster: engine})

	return &Service{
		pool:        opts.Pool,
		tx:          tx,
		logger:      logger,
		accounts:    chart,
		journals:    engine,
		ledger:      balances,
		periods:     controller,
		reports:     reports.NewService(reportRepo, chart, balances, tx, opts.Metrics, logger),
		mappings:    mappings.NewRepository(opts.Pool),
		idempotency: idempotency,
	}
}

// Transactor exposes the shared transaction runner so callers can group
// several ledger operations atomically.
func (s *Service) Transactor() *db.Transactor { return s.tx }

func (s *Service) Accounts() *accounts.Service { return s.accounts }
func (s *Service) Journals() *journals.Service { return s.journals }
func (s *Service) Ledger() *ledger.Service { return s.ledger }
func (s *Service) Periods() *periods.Service { return s.periods }
func (s *Service) Reports() *reports.Service { return s.reports }
func (s *Service) Mappings() mappings.Repository { return s.mappings }
func (s *Service) Idempotency() *internalShared.IdempotencyStore { return s.idempotency }

// SubmitJournalEntry stores a balanced entry as DRAFT lines sharing one group.
func (s *Service) SubmitJournalEntry(ctx context.Context, in journals.SubmitInput) ([]journals.TransactionRef, error) {
	return s.journals.Submit(ctx, in)
}

func (s *Service) Approve(ctx context.Context, companyID, txID, approverID int64) (journals.Transaction, error) {
	return s.journals.Approve(ctx, companyID, txID, approverID)
}

func (s *Service) Post(ctx context.Context, companyID, txID, actorID int64) (journals.Transaction, error) {
	return s.journals.Post(ctx, companyID, txID, actorID)
}

func (s *Service) ApproveEntry(ctx context.Context, companyID int64, groupID uuid.UUID, approverID int64) ([]journals.Transaction, error) {
	return s.journals.ApproveEntry(ctx, companyID, groupID, approverID)
}

func (s *Service) PostEntry(ctx context.Context, companyID int64, groupID uuid.UUID, actorID int64) ([]journals.Transaction, error) {
	return s.journals.PostEntry(ctx, companyID, groupID, actorID)
}

func (s *Service) Cancel(ctx context.Context, in journals.CancelInput) (journals.Transaction, error) {
	return s.journals.Cancel(ctx, in)
}

func (s *Service) CreateAdjustingEntry(ctx context.Context, in journals.AdjustInput) ([]journals.TransactionRef, error) {
	return s.journals.CreateAdjustingEntry(ctx, in)
}

func (s *Service) ClosePeriod(ctx context.Context, in periods.ClosePeriodInput) (periods.FiscalPeriod, error) {
	return s.periods.ClosePeriod(ctx, in)
}

func (s *Service) CloseYear(ctx context.Context, in periods.CloseYearInput) (periods.ClosingSummary, error) {
	return s.periods.CloseFiscalYear(ctx, in)
}

func (s *Service) ReopenPeriod(ctx context.Context, in periods.ReopenInput) (periods.FiscalPeriod, error) {
	return s.periods.ReopenPeriod(ctx, in)
}

// AccountBalance returns the cached balance, or the historical balance when
// asOf is set.
func (s *Service) AccountBalance(ctx context.Context, companyID, accountID int64, asOf *time.Time) (decimal.Decimal, error) {
	if asOf == nil {
		return s.ledger.CurrentBalance(ctx, companyID, accountID)
	}
	var out decimal.Decimal
	err := s.tx.InReadTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.ledger.BalanceAsOf(ctx, companyID, accountID, *asOf)
		return err
	})
	return out, err
}

func (s *Service) TrialBalance(ctx context.Context, companyID int64, start, end time.Time) (reports.TrialBalance, error) {
	return s.reports.TrialBalance(ctx, companyID, start, end)
}

func (s *Service) GeneralLedger(ctx context.Context, companyID, accountID int64, start, end time.Time) (reports.GeneralLedger, error) {
	return s.reports.GeneralLedger(ctx, companyID, accountID, start, end)
}

func (s *Service) VerifyBalance(ctx context.Context, companyID int64, asOf time.Time) (reports.BalanceVerification, error) {
	return s.reports.VerifyBalance(ctx, companyID, asOf)
}

func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, start, end time.Time) (reports.ProfitAndLoss, error) {
	return s.reports.ProfitAndLoss(ctx, companyID, start, end)
}

// Reconcile compares an account's cached balance with its posting history
// inside one read-only snapshot.
func (s *Service) Reconcile(ctx context.Context, companyID, accountID int64) (ledger.Reconciliation, error) {
	return s.ledger.Reconcile(ctx, companyID, accountID)
}

func (s *Service) List(ctx context.Context, companyID int64) ([]accounts.Account, error) {
	return s.accounts.List(ctx, companyID)
}

// Companies lists every company that owns at least one account.
func (s *Service) Companies(ctx context.Context) ([]int64, error) {
	rows, err := db.Conn(ctx, s.pool).Query(ctx, `SELECT DISTINCT company_id FROM accounts ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("accounting: list companies: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// MapAccount points an integration key at a postable account of the company.
func (s *Service) MapAccount(ctx context.Context, m mappings.AccountMapping) (mappings.AccountMapping, error) {
	var out mappings.AccountMapping
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.Resolve(ctx, m.CompanyID, m.AccountID)
		if err != nil {
			return err
		}
		if !account.Postable() {
			return shared.Invalid("account_id", "account %s is not an active leaf", account.Code)
		}
		out, err = s.mappings.Upsert(ctx, m)
		return err
	})
	return out, err
}

// Hooks builds the integration hooks booking documents under the system actor.
func (s *Service) Hooks(systemActorID int64) *integration.Hooks {
	return integration.NewHooks(s.journals, s.mappings, s.tx, systemActorID, s.logger)
}
