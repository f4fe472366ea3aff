package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// ledgerAPI is the slice of the ledger facade the admin commands drive.
type ledgerAPI interface {
	ClosePeriod(ctx context.Context, in periods.ClosePeriodInput) (periods.FiscalPeriod, error)
	CloseYear(ctx context.Context, in periods.CloseYearInput) (periods.ClosingSummary, error)
	ReopenPeriod(ctx context.Context, in periods.ReopenInput) (periods.FiscalPeriod, error)
	VerifyBalance(ctx context.Context, companyID int64, asOf time.Time) (reports.BalanceVerification, error)
	List(ctx context.Context, companyID int64) ([]accounts.Account, error)
	Reconcile(ctx context.Context, companyID, accountID int64) (ledger.Reconciliation, error)
	MapAccount(ctx context.Context, m mappings.AccountMapping) (mappings.AccountMapping, error)
}

type keyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

type deps struct {
	ledger      ledgerAPI
	jobs        jobs.IntegrityEnqueuer
	idempotency keyPurger
	actorID     int64
	close       func()
}

// ctl connects lazily so --help never touches Postgres.
type ctl struct {
	connect func(ctx context.Context) (deps, error)
	deps    deps
	ready   bool
}

func (rt *ctl) ensure(ctx context.Context) error {
	if rt.ready {
		return nil
	}
	d, err := rt.connect(ctx)
	if err != nil {
		return err
	}
	rt.deps, rt.ready = d, true
	return nil
}

func (rt *ctl) shutdown() {
	if rt.ready && rt.deps.close != nil {
		rt.deps.close()
	}
}

func connect(ctx context.Context) (deps, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return deps{}, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return deps{}, err
	}
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		pool.Close()
		return deps{}, err
	}
	svc := accounting.NewService(accounting.Options{Pool: pool, MaxAttempts: cfg.LedgerTxMaxAttempts, Logger: logger})
	return deps{
		ledger:      svc,
		jobs:        client,
		idempotency: svc.Idempotency(),
		actorID:     cfg.LedgerSystemActorID,
		close: func() {
			if err := client.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
			pool.Close()
		},
	}, nil
}

func newRootCommand(rt *ctl) *cobra.Command {
	var actor int64
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Privileged ledger operations",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.ensure(cmd.Context()); err != nil {
				return err
			}
			if actor > 0 {
				rt.deps.actorID = actor
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			rt.shutdown()
		},
	}
	root.PersistentFlags().Int64Var(&actor, "actor", 0, "acting user id (defaults to LEDGER_SYSTEM_ACTOR_ID)")

	root.AddCommand(
		newClosePeriodCommand(rt),
		newCloseYearCommand(rt),
		newReopenPeriodCommand(rt),
		newVerifyCommand(rt),
		newReconcileCommand(rt),
		newEnqueueIntegrityCommand(rt),
		newMapAccountCommand(rt),
		newPurgeKeysCommand(rt),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}
