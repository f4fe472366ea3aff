package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// BalanceVerifier checks the accounting equation of a company.
type BalanceVerifier interface {
	VerifyBalance(ctx context.Context, companyID int64, asOf time.Time) (reports.BalanceVerification, error)
}

// Reconciler compares an account's cached balance to its history.
type Reconciler interface {
	Reconcile(ctx context.Context, companyID, accountID int64) (ledger.Reconciliation, error)
}

// AccountLister lists a company's chart.
type AccountLister interface {
	List(ctx context.Context, companyID int64) ([]accounts.Account, error)
}

// CompanyLister lists companies that own a chart of accounts.
type CompanyLister interface {
	Companies(ctx context.Context) ([]int64, error)
}

// IntegrityReport is the outcome for one company.
type IntegrityReport struct {
	CompanyID    int64
	Verification reports.BalanceVerification
	Drifted      []ledger.Reconciliation
}

// Healthy reports whether the company balances and every cache matches history.
func (r IntegrityReport) Healthy() bool {
	return r.Verification.IsBalanced && len(r.Drifted) == 0
}

// IntegrityJob runs the ledger integrity check.
type IntegrityJob struct {
	Verifier    BalanceVerifier
	Reconciler  Reconciler
	Accounts    AccountLister
	Companies   CompanyLister
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
	clock       func() time.Time
}

// NewIntegrityJob initialises the integrity handler.
func NewIntegrityJob(verifier BalanceVerifier, reconciler Reconciler, lister AccountLister, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{
		Verifier:    verifier,
		Reconciler:  reconciler,
		Accounts:    lister,
		Companies:   companies,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: 4,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle decodes the payload and runs the check.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger integrity: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run checks every requested company concurrently. Imbalances are findings,
// not failures; only infrastructure errors fail the run.
func (j *IntegrityJob) Run(ctx context.Context, payload IntegrityPayload) (results []IntegrityReport, err error) {
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() { err = tracker.End(err) }()

	asOf := j.clock()
	if payload.AsOf != nil {
		asOf = *payload.AsOf
	}
	companies := payload.CompanyIDs
	if len(companies) == 0 {
		if companies, err = j.Companies.Companies(ctx); err != nil {
			return nil, fmt.Errorf("ledger integrity: list companies: %w", err)
		}
	}
	logger := j.logger().With(slog.String("as_of", asOf.Format(time.DateOnly)), slog.String("reason", payload.Reason))
	logger.Info("starting ledger integrity check", slog.Int("companies", len(companies)))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(j.Concurrency, 1))
	for _, companyID := range companies {
		g.Go(func() error {
			report, err := j.checkCompany(ctx, companyID, asOf)
			if err != nil {
				return fmt.Errorf("ledger integrity: company %d: %w", companyID, err)
			}
			mu.Lock()
			results = append(results, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("ledger integrity check failed", slog.Any("error", err))
		return results, err
	}

	for _, r := range results {
		if !r.Verification.IsBalanced {
			logger.Warn("company out of balance",
				slog.Int64("company_id", r.CompanyID),
				slog.String("difference", r.Verification.BalanceDifference.String()))
		}
		for _, d := range r.Drifted {
			logger.Warn("cached balance drifted",
				slog.Int64("company_id", r.CompanyID),
				slog.Int64("account_id", d.AccountID),
				slog.String("code", d.Code),
				slog.String("cached", d.Cached.String()),
				slog.String("computed", d.Computed.String()))
		}
		j.Metrics.CompanyChecked(r.CompanyID, !r.Verification.IsBalanced, len(r.Drifted))
	}
	logger.Info("ledger integrity check finished", slog.Int("companies", len(results)))
	return results, nil
}

func (j *IntegrityJob) checkCompany(ctx context.Context, companyID int64, asOf time.Time) (IntegrityReport, error) {
	report := IntegrityReport{CompanyID: companyID}
	verification, err := j.Verifier.VerifyBalance(ctx, companyID, asOf)
	if err != nil {
		return report, err
	}
	report.Verification = verification

	chart, err := j.Accounts.List(ctx, companyID)
	if err != nil {
		return report, err
	}
	for _, a := range chart {
		if !a.IsLeaf {
			continue
		}
		rec, err := j.Reconciler.Reconcile(ctx, companyID, a.ID)
		if err != nil {
			return report, err
		}
		if !rec.Consistent() {
			report.Drifted = append(report.Drifted, rec)
		}
	}
	return report, nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
