package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// IntegrityEnqueuer submits integrity checks.
type IntegrityEnqueuer interface {
	EnqueueIntegrity(ctx context.Context, payload IntegrityPayload) (*asynq.TaskInfo, error)
}

// IntegrityOnClose returns a ledger event callback that schedules an
// integrity check of the company whenever a period or year is closed.
func IntegrityOnClose(client IntegrityEnqueuer, logger *slog.Logger) func(context.Context, shared.Event) {
	return func(ctx context.Context, ev shared.Event) {
		var asOf time.Time
		switch ev.Kind {
		case shared.EventPeriodClose:
			_, asOf = monthBounds(ev.Year, ev.Month)
		case shared.EventYearClose:
			asOf = time.Date(ev.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
		default:
			return
		}
		info, err := client.EnqueueIntegrity(ctx, IntegrityPayload{
			CompanyIDs: []int64{ev.CompanyID},
			AsOf:       &asOf,
			Reason:     string(ev.Kind),
		})
		if errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Debug("integrity check already queued", slog.Int64("company_id", ev.CompanyID))
			return
		}
		if err != nil {
			logger.Warn("enqueue integrity after close", slog.Int64("company_id", ev.CompanyID), slog.Any("error", err))
			return
		}
		logger.Info("integrity check enqueued", slog.Int64("company_id", ev.CompanyID), slog.String("task_id", info.ID))
	}
}

func monthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}
