package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountResolver resolves company-scoped accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, companyID, accountID int64) (accounts.Account, error)
}

// BalanceReader answers point-in-time balances.
type BalanceReader interface {
	BalanceAsOf(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error)
}

// Metrics receives the outcome of balance verifications.
type Metrics interface {
	ObserveBalanceDifference(companyID int64, difference decimal.Decimal)
}

// Service builds reports inside read-only snapshots. Identical concurrent
// requests share one computation.
type Service struct {
	repo     Repository
	accounts AccountResolver
	balances BalanceReader
	read     shared.ReadRunner
	metrics  Metrics
	logger   *slog.Logger
	group    singleflight.Group
}

func NewService(repo Repository, resolver AccountResolver, balances BalanceReader, read shared.ReadRunner, metrics Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, accounts: resolver, balances: balances, read: read, metrics: metrics, logger: logger}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func checkRange(companyID int64, start, end time.Time) error {
	v := &shared.ValidationError{}
	if companyID <= 0 {
		v.Add(shared.EntryLevel, "company_id", "company is required")
	}
	if start.IsZero() {
		v.Add(shared.EntryLevel, "start", "start date is required")
	}
	if end.IsZero() {
		v.Add(shared.EntryLevel, "end", "end date is required")
	}
	if !start.IsZero() && !end.IsZero() && day(start).After(day(end)) {
		v.Add(shared.EntryLevel, "start", "start %s is after end %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return v.OrNil()
}

// do coalesces identical requests by key and runs fn in a read snapshot.
func do[T any](ctx context.Context, s *Service, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err, coalesced := s.group.Do(key, func() (any, error) {
		var out T
		err := s.read.InReadTx(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx)
			return err
		})
		return out, err
	})
	if coalesced {
		s.logger.Debug("report request coalesced", slog.String("key", key))
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// TrialBalance lists tracked leaf accounts with their movements over [start, end].
func (s *Service) TrialBalance(ctx context.Context, companyID int64, start, end time.Time) (TrialBalance, error) {
	if err := checkRange(companyID, start, end); err != nil {
		return TrialBalance{}, err
	}
	start, end = day(start), day(end)
	key := fmt.Sprintf("tb:%d:%s:%s", companyID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	return do(ctx, s, key, func(ctx context.Context) (TrialBalance, error) {
		balances, err := s.repo.Balances(ctx, companyID, Window{Start: &start, End: end})
		if err != nil {
			return TrialBalance{}, fmt.Errorf("reports: trial balance: %w", err)
		}
		tb := BuildTrialBalance(balances)
		tb.CompanyID, tb.Start, tb.End = companyID, start, end
		return tb, nil
	})
}

// GeneralLedger lists the posted lines of an account over [start, end] with a
// running balance seeded from the balance on the day before start.
func (s *Service) GeneralLedger(ctx context.Context, companyID, accountID int64, start, end time.Time) (GeneralLedger, error) {
	if err := checkRange(companyID, start, end); err != nil {
		return GeneralLedger{}, err
	}
	start, end = day(start), day(end)
	key := fmt.Sprintf("gl:%d:%d:%s:%s", companyID, accountID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	return do(ctx, s, key, func(ctx context.Context) (GeneralLedger, error) {
		account, err := s.accounts.Resolve(ctx, companyID, accountID)
		if err != nil {
			return GeneralLedger{}, err
		}
		opening, err := s.balances.BalanceAsOf(ctx, companyID, accountID, start.AddDate(0, 0, -1))
		if err != nil {
			return GeneralLedger{}, fmt.Errorf("reports: opening balance: %w", err)
		}
		lines, err := s.repo.Lines(ctx, companyID, account.Path, start, end)
		if err != nil {
			return GeneralLedger{}, fmt.Errorf("reports: ledger lines: %w", err)
		}
		gl := BuildGeneralLedger(account, opening, lines)
		gl.Start, gl.End = start, end
		return gl, nil
	})
}

// VerifyBalance evaluates assets = liabilities + equity + current earnings at asOf.
func (s *Service) VerifyBalance(ctx context.Context, companyID int64, asOf time.Time) (BalanceVerification, error) {
	if companyID <= 0 {
		return BalanceVerification{}, shared.Invalid("company_id", "company is required")
	}
	if asOf.IsZero() {
		return BalanceVerification{}, shared.Invalid("as_of", "date is required")
	}
	asOf = day(asOf)
	key := fmt.Sprintf("verify:%d:%s", companyID, asOf.Format(time.DateOnly))
	result, err := do(ctx, s, key, func(ctx context.Context) (BalanceVerification, error) {
		balances, err := s.repo.Balances(ctx, companyID, Window{End: asOf})
		if err != nil {
			return BalanceVerification{}, fmt.Errorf("reports: balances: %w", err)
		}
		debit, credit, err := s.repo.PostedTotals(ctx, companyID, asOf)
		if err != nil {
			return BalanceVerification{}, fmt.Errorf("reports: posted totals: %w", err)
		}
		v := BuildBalanceVerification(balances, debit, credit)
		v.CompanyID, v.AsOf = companyID, asOf
		return v, nil
	})
	if err != nil {
		return BalanceVerification{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveBalanceDifference(companyID, result.BalanceDifference)
	}
	if !result.IsBalanced {
		s.logger.Warn("ledger out of balance",
			slog.Int64("company_id", companyID),
			slog.String("as_of", asOf.Format(time.DateOnly)),
			slog.String("difference", result.BalanceDifference.String()))
	}
	return result, nil
}

// ProfitAndLoss reports revenue and expense movements over [start, end],
// ignoring year-end closing entries.
func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, start, end time.Time) (ProfitAndLoss, error) {
	if err := checkRange(companyID, start, end); err != nil {
		return ProfitAndLoss{}, err
	}
	start, end = day(start), day(end)
	key := fmt.Sprintf("pl:%d:%s:%s", companyID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	return do(ctx, s, key, func(ctx context.Context) (ProfitAndLoss, error) {
		balances, err := s.repo.Balances(ctx, companyID, Window{Start: &start, End: end, ExcludeClosing: true})
		if err != nil {
			return ProfitAndLoss{}, fmt.Errorf("reports: profit and loss: %w", err)
		}
		pl := BuildProfitAndLoss(balances)
		pl.CompanyID, pl.Start, pl.End = companyID, start, end
		return pl, nil
	})
}
