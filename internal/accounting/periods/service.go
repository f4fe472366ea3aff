package periods

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LineCounter answers the line-level questions closing depends on.
type LineCounter interface {
	// CountPending counts DRAFT and APPROVED lines dated in a fiscal month.
	CountPending(ctx context.Context, companyID int64, year, month int) (int, error)
	// PostedYears lists fiscal years before the given one with posted lines.
	PostedYears(ctx context.Context, companyID int64, before int) ([]int, error)
}

// YearCloser writes the closing entry that zeroes revenue and expense into
// retained earnings. It runs inside the closing transaction.
type YearCloser interface {
	CloseYear(ctx context.Context, in CloseYearInput) (ClosingSummary, error)
}

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Dependencies wires the fiscal period controller.
type Dependencies struct {
	Repo   Repository
	Lines  LineCounter
	Closer YearCloser
	Tx     shared.TxRunner
	Audit  AuditPort
	Events shared.EventPublisher
	Logger *slog.Logger
}

// Service is the fiscal period controller.
type Service struct {
	repo   Repository
	lines  LineCounter
	closer YearCloser
	tx     shared.TxRunner
	audit  AuditPort
	events shared.EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   deps.Repo,
		lines:  deps.Lines,
		closer: deps.Closer,
		tx:     deps.Tx,
		audit:  deps.Audit,
		events: deps.Events,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetCloser installs the year closer after construction; the closer depends
// on services that themselves consult this controller.
func (s *Service) SetCloser(closer YearCloser) {
	s.closer = closer
}

// IsClosed reports whether postings dated in the month are blocked, either
// because the month or its fiscal year is closed.
func (s *Service) IsClosed(ctx context.Context, companyID int64, year, month int) (bool, error) {
	yearRow, err := s.repo.Get(ctx, companyID, year, YearMarkerMonth)
	if err != nil {
		return false, err
	}
	if yearRow.Closed() || month == YearMarkerMonth {
		return yearRow.Closed(), nil
	}
	p, err := s.repo.Get(ctx, companyID, year, month)
	if err != nil {
		return false, err
	}
	return p.Closed(), nil
}

// EnsureOpenForPosting locks the month and year rows in share mode for the
// rest of the caller's transaction and fails if either is closed.
func (s *Service) EnsureOpenForPosting(ctx context.Context, companyID int64, date time.Time) error {
	pos := PositionOf(date)
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, month := range []int{YearMarkerMonth, pos.Month} {
			if err := s.repo.Ensure(ctx, companyID, pos.Year, month); err != nil {
				return err
			}
			p, err := s.repo.LockShared(ctx, companyID, pos.Year, month)
			if err != nil {
				return err
			}
			if !p.Closed() {
				continue
			}
			if month == YearMarkerMonth {
				return shared.Violation(shared.RuleYearClosed, "fiscal year %d is closed", pos.Year)
			}
			return shared.Violation(shared.RulePeriodClosed, "fiscal period %04d-%02d is closed", pos.Year, pos.Month)
		}
		return nil
	})
}

// ClosePeriod closes a fiscal month. Months with DRAFT or APPROVED lines are rejected.
func (s *Service) ClosePeriod(ctx context.Context, in ClosePeriodInput) (FiscalPeriod, error) {
	if err := in.Validate(); err != nil {
		return FiscalPeriod{}, err
	}
	var closed FiscalPeriod
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		yearRow, err := s.repo.Get(ctx, in.CompanyID, in.Year, YearMarkerMonth)
		if err != nil {
			return err
		}
		if yearRow.Closed() {
			return shared.Violation(shared.RuleYearClosed, "fiscal year %d is closed", in.Year)
		}
		if err := s.repo.Ensure(ctx, in.CompanyID, in.Year, in.Month); err != nil {
			return err
		}
		current, err := s.repo.LockExclusive(ctx, in.CompanyID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if current.Closed() {
			return shared.Violation(shared.RulePeriodAlreadyClosed, "fiscal period %04d-%02d is already closed", in.Year, in.Month)
		}
		if err := internalShared.ValidatePeriodTransition(string(current.Status), internalShared.PeriodStatusClosed, false); err != nil {
			return shared.Violation(shared.RuleIllegalTransition, "%v", err)
		}
		pending, err := s.lines.CountPending(ctx, in.CompanyID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if pending > 0 {
			return shared.Violation(shared.RulePendingTransactions, "%d draft or approved lines remain in %04d-%02d", pending, in.Year, in.Month)
		}
		at := s.now()
		if err := s.repo.MarkClosed(ctx, in.CompanyID, in.Year, in.Month, in.ActorID, at); err != nil {
			return err
		}
		closed = current
		closed.Status = PeriodStatusClosed
		closed.ClosedBy = &in.ActorID
		closed.ClosedAt = &at
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}
	s.after(ctx, in.ActorID, "period.close", fmt.Sprintf("%d:%04d-%02d", in.CompanyID, in.Year, in.Month), nil,
		shared.Event{Kind: shared.EventPeriodClose, CompanyID: in.CompanyID, Year: in.Year, Month: in.Month})
	return closed, nil
}

// CloseFiscalYear requires all twelve months closed, writes the closing entry
// dated December 31 and marks the year closed.
func (s *Service) CloseFiscalYear(ctx context.Context, in CloseYearInput) (ClosingSummary, error) {
	if err := in.Validate(); err != nil {
		return ClosingSummary{}, err
	}
	if s.closer == nil {
		return ClosingSummary{}, fmt.Errorf("periods: year closer not configured")
	}
	var summary ClosingSummary
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Ensure(ctx, in.CompanyID, in.Year, YearMarkerMonth); err != nil {
			return err
		}
		marker, err := s.repo.LockExclusive(ctx, in.CompanyID, in.Year, YearMarkerMonth)
		if err != nil {
			return err
		}
		if marker.Closed() {
			return shared.Violation(shared.RuleYearAlreadyClosed, "fiscal year %d is already closed", in.Year)
		}
		var open []int
		for month := 1; month <= 12; month++ {
			p, err := s.repo.LockExclusive(ctx, in.CompanyID, in.Year, month)
			if err != nil {
				return err
			}
			if !p.Closed() {
				open = append(open, month)
			}
		}
		if len(open) > 0 {
			return shared.Violation(shared.RuleYearIncomplete, "fiscal year %d has open months %v", in.Year, open)
		}
		if err := s.priorYearsClosed(ctx, in.CompanyID, in.Year); err != nil {
			return err
		}
		summary, err = s.closer.CloseYear(ctx, in)
		if err != nil {
			return err
		}
		return s.repo.MarkClosed(ctx, in.CompanyID, in.Year, YearMarkerMonth, in.ActorID, s.now())
	})
	if err != nil {
		return ClosingSummary{}, err
	}
	s.after(ctx, in.ActorID, "year.close", fmt.Sprintf("%d:%04d", in.CompanyID, in.Year), map[string]any{
		"group_id":                     summary.GroupID.String(),
		"lines":                        summary.Lines,
		"net_income":                   summary.NetIncome.String(),
		"retained_earnings_account_id": summary.RetainedEarningsAccountID,
	}, shared.Event{Kind: shared.EventYearClose, CompanyID: in.CompanyID, Year: in.Year})
	return summary, nil
}

// priorYearsClosed rejects closing a year while an earlier year with posted
// lines is still open: closing balances are cumulative, so the earlier
// year's income would otherwise be closed twice.
func (s *Service) priorYearsClosed(ctx context.Context, companyID int64, year int) error {
	years, err := s.lines.PostedYears(ctx, companyID, year)
	if err != nil {
		return err
	}
	for _, y := range years {
		marker, err := s.repo.LockShared(ctx, companyID, y, YearMarkerMonth)
		if err != nil {
			return err
		}
		if !marker.Closed() {
			return shared.Violation(shared.RulePriorYearOpen, "fiscal year %d must be closed before %d", y, year)
		}
	}
	return nil
}

// ReopenPeriod reopens a closed month of a year that is still open. It is a
// privileged operation and always audited.
func (s *Service) ReopenPeriod(ctx context.Context, in ReopenInput) (FiscalPeriod, error) {
	if err := in.Validate(); err != nil {
		return FiscalPeriod{}, err
	}
	var reopened FiscalPeriod
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Ensure(ctx, in.CompanyID, in.Year, YearMarkerMonth); err != nil {
			return err
		}
		marker, err := s.repo.LockExclusive(ctx, in.CompanyID, in.Year, YearMarkerMonth)
		if err != nil {
			return err
		}
		if marker.Closed() {
			return shared.Violation(shared.RuleYearClosed, "fiscal year %d is closed and cannot be reopened", in.Year)
		}
		current, err := s.repo.LockExclusive(ctx, in.CompanyID, in.Year, in.Month)
		if err != nil {
			return err
		}
		if !current.Closed() {
			return shared.Violation(shared.RulePeriodNotClosed, "fiscal period %04d-%02d is not closed", in.Year, in.Month)
		}
		if err := internalShared.ValidatePeriodTransition(string(current.Status), internalShared.PeriodStatusOpen, true); err != nil {
			return shared.Violation(shared.RuleIllegalTransition, "%v", err)
		}
		at := s.now()
		if err := s.repo.MarkOpen(ctx, in.CompanyID, in.Year, in.Month, in.ActorID, at, in.Reason); err != nil {
			return err
		}
		reopened = current
		reopened.Status = PeriodStatusOpen
		reopened.ReopenedBy = &in.ActorID
		reopened.ReopenedAt = &at
		reopened.ReopenReason = in.Reason
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}
	s.after(ctx, in.ActorID, "period.reopen", fmt.Sprintf("%d:%04d-%02d", in.CompanyID, in.Year, in.Month),
		map[string]any{"reason": in.Reason}, shared.Event{})
	return reopened, nil
}

// ListYear returns the twelve months of a year followed by the year marker.
// Months without a stored row are reported OPEN.
func (s *Service) ListYear(ctx context.Context, companyID int64, year int) ([]FiscalPeriod, error) {
	stored, err := s.repo.ListYear(ctx, companyID, year)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[int]FiscalPeriod, len(stored))
	for _, p := range stored {
		byMonth[p.Month] = p
	}
	out := make([]FiscalPeriod, 0, 13)
	for _, month := range []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, YearMarkerMonth} {
		p, ok := byMonth[month]
		if !ok {
			p = openPeriod(companyID, year, month)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) after(ctx context.Context, actorID int64, action, entityID string, meta map[string]any, event shared.Event) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "fiscal_period",
			EntityID: entityID,
			Meta:     meta,
			At:       s.now(),
		}); err != nil {
			s.logger.Warn("audit period change", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.events != nil && event.Kind != "" {
		event.At = s.now()
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("publish period event", slog.String("kind", string(event.Kind)), slog.Any("error", err))
		}
	}
}
