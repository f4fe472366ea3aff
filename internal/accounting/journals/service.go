package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// BalanceLedger applies signed deltas to account balances.
type BalanceLedger interface {
	ApplyPosting(ctx context.Context, accountID int64, amount decimal.Decimal, side accounts.Side) (decimal.Decimal, error)
	ReversePosting(ctx context.Context, accountID int64, amount decimal.Decimal, side accounts.Side) (decimal.Decimal, error)
}

// PeriodGate locks the fiscal period of a date for the current transaction.
type PeriodGate interface {
	EnsureOpenForPosting(ctx context.Context, companyID int64, date time.Time) error
}

// IdempotencyPort consumes submission keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Metrics counts lifecycle transitions and rejected submissions.
type Metrics interface {
	ObserveTransition(to string, lines int)
	ObserveRejection(reason string)
}

// Dependencies wires the lifecycle engine.
type Dependencies struct {
	Repo        Repository
	Tx          shared.TxRunner
	Validator   *Validator
	Ledger      BalanceLedger
	Periods     PeriodGate
	Audit       AuditPort
	Events      shared.EventPublisher
	Idempotency IdempotencyPort
	Metrics     Metrics
	Logger      *slog.Logger
}

// Service is the transaction lifecycle engine.
type Service struct {
	repo        Repository
	tx          shared.TxRunner
	validator   *Validator
	ledger      BalanceLedger
	periods     PeriodGate
	audit       AuditPort
	events      shared.EventPublisher
	idempotency IdempotencyPort
	metrics     Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        deps.Repo,
		tx:          deps.Tx,
		validator:   deps.Validator,
		ledger:      deps.Ledger,
		periods:     deps.Periods,
		audit:       deps.Audit,
		events:      deps.Events,
		idempotency: deps.Idempotency,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.validator.WithNow(now)
	}
}

// Submit validates the lines and stores them as one DRAFT entry sharing a group id.
func (s *Service) Submit(ctx context.Context, in SubmitInput) ([]TransactionRef, error) {
	if err := in.validateHeader(); err != nil {
		s.rejected("header")
		return nil, err
	}
	var created []Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if in.IdempotencyKey != "" && s.idempotency != nil {
			module := in.IdempotencyModule
			if module == "" {
				module = "LEDGER"
			}
			if err := s.idempotency.CheckAndInsert(ctx, in.IdempotencyKey, module); err != nil {
				if errors.Is(err, internalShared.ErrIdempotencyConflict) {
					return fmt.Errorf("%w: %s", shared.ErrIdempotencyConflict, in.IdempotencyKey)
				}
				return err
			}
		}
		if err := s.validator.Validate(ctx, in.CompanyID, in.Lines); err != nil {
			return err
		}
		var err error
		created, err = s.insertLines(ctx, in.CompanyID, in.Type, in.CreatedBy, in.Lines, nil)
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			s.rejected("validation")
		}
		return nil, err
	}
	s.observe(string(StatusDraft), len(created))
	s.record(ctx, in.CreatedBy, "journal.submit", created[0].GroupID.String(), map[string]any{
		"type":  in.Type,
		"lines": len(created),
	})
	return refs(created), nil
}

// Approve moves a DRAFT line to APPROVED.
func (s *Service) Approve(ctx context.Context, companyID, txID, approverID int64) (Transaction, error) {
	if approverID <= 0 {
		return Transaction{}, shared.Invalid("approver_id", "approver required")
	}
	var line Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, companyID, txID)
		if err != nil {
			return err
		}
		if err := s.approveLine(ctx, &current, approverID); err != nil {
			return err
		}
		line = current
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe(string(StatusApproved), 1)
	s.record(ctx, approverID, "journal.approve", fmt.Sprintf("%d", line.ID), map[string]any{"number": line.Number})
	return line, nil
}

// Post moves an APPROVED line to POSTED and applies its balance delta, all in
// one transaction with the fiscal period locked.
func (s *Service) Post(ctx context.Context, companyID, txID, actorID int64) (Transaction, error) {
	if actorID <= 0 {
		return Transaction{}, shared.Invalid("actor_id", "actor required")
	}
	var line Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, companyID, txID)
		if err != nil {
			return err
		}
		if err := s.postLine(ctx, &current, actorID); err != nil {
			return err
		}
		line = current
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe(string(StatusPosted), 1)
	s.record(ctx, actorID, "journal.post", fmt.Sprintf("%d", line.ID), map[string]any{"number": line.Number})
	s.publish(ctx, shared.EventPosted, []Transaction{line})
	return line, nil
}

// Cancel moves a POSTED line to CANCELLED and reverses its balance delta.
// The row is kept and its period must still be open.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (Transaction, error) {
	v := &shared.ValidationError{}
	if in.Reason == "" {
		v.Add(shared.EntryLevel, "reason", "cancel reason required")
	}
	if in.ActorID <= 0 {
		v.Add(shared.EntryLevel, "actor_id", "actor required")
	}
	if err := v.OrNil(); err != nil {
		return Transaction{}, err
	}
	var line Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, in.CompanyID, in.TransactionID)
		if err != nil {
			return err
		}
		if err := s.guard(current, StatusCancelled); err != nil {
			return err
		}
		if err := s.periods.EnsureOpenForPosting(ctx, current.CompanyID, current.Date); err != nil {
			return err
		}
		if _, err := s.ledger.ReversePosting(ctx, current.AccountID, current.Amount(), current.Side()); err != nil {
			return err
		}
		at := s.now()
		current.Status = StatusCancelled
		current.CancelledBy = &in.ActorID
		current.CancelledAt = &at
		current.CancelReason = in.Reason
		if err := s.repo.UpdateStatus(ctx, current); err != nil {
			return err
		}
		line = current
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe(string(StatusCancelled), 1)
	s.record(ctx, in.ActorID, "journal.cancel", fmt.Sprintf("%d", line.ID), map[string]any{"number": line.Number, "reason": in.Reason})
	s.publish(ctx, shared.EventCancelled, []Transaction{line})
	return line, nil
}

// Delete physically removes a line that was never posted.
func (s *Service) Delete(ctx context.Context, companyID, txID, actorID int64) error {
	var number string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, companyID, txID)
		if err != nil {
			return err
		}
		if !current.Status.Pending() {
			return shared.Violation(shared.RuleIllegalTransition, "transaction %s is %s and cannot be deleted", current.Number, current.Status)
		}
		number = current.Number
		return s.repo.Delete(ctx, current.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "journal.delete", fmt.Sprintf("%d", txID), map[string]any{"number": number})
	return nil
}

// CreateAdjustingEntry stores a DRAFT ADJUSTMENT entry whose lines reference a
// POSTED original. The original is left untouched.
func (s *Service) CreateAdjustingEntry(ctx context.Context, in AdjustInput) ([]TransactionRef, error) {
	if in.CreatedBy <= 0 {
		return nil, shared.Invalid("created_by", "actor required")
	}
	var created []Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		original, err := s.postedOriginal(ctx, in.CompanyID, in.OriginalTransactionID)
		if err != nil {
			return err
		}
		if err := s.validator.Validate(ctx, in.CompanyID, in.Lines); err != nil {
			return err
		}
		created, err = s.insertLines(ctx, in.CompanyID, TypeAdjustment, in.CreatedBy, in.Lines, &original.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			s.rejected("validation")
		}
		return nil, err
	}
	s.observe(string(StatusDraft), len(created))
	s.record(ctx, in.CreatedBy, "journal.adjust", created[0].GroupID.String(), map[string]any{
		"original_transaction_id": in.OriginalTransactionID,
		"lines":                   len(created),
	})
	return refs(created), nil
}

// CreateReversingEntry creates an adjusting entry that mirrors every POSTED
// line of the original's group with debit and credit swapped.
func (s *Service) CreateReversingEntry(ctx context.Context, in ReverseInput) ([]TransactionRef, error) {
	var lines []LineInput
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		original, err := s.postedOriginal(ctx, in.CompanyID, in.OriginalTransactionID)
		if err != nil {
			return err
		}
		group, err := s.repo.ListGroup(ctx, in.CompanyID, original.GroupID, false)
		if err != nil {
			return err
		}
		date := original.Date
		if in.Date != nil {
			date = *in.Date
		}
		description := in.Description
		if description == "" {
			description = "Reversal of " + original.Number
		}
		for _, line := range group {
			if line.Status != StatusPosted {
				continue
			}
			lines = append(lines, LineInput{
				AccountID:   line.AccountID,
				Debit:       line.Credit,
				Credit:      line.Debit,
				Date:        date,
				Description: description,
				Memo:        line.Number,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.CreateAdjustingEntry(ctx, AdjustInput{
		CompanyID:             in.CompanyID,
		OriginalTransactionID: in.OriginalTransactionID,
		CreatedBy:             in.CreatedBy,
		Lines:                 lines,
	})
}

// ApproveEntry approves every line of a group, locking lines in id order.
func (s *Service) ApproveEntry(ctx context.Context, companyID int64, groupID uuid.UUID, approverID int64) ([]Transaction, error) {
	if approverID <= 0 {
		return nil, shared.Invalid("approver_id", "approver required")
	}
	lines, err := s.forGroup(ctx, companyID, groupID, func(ctx context.Context, line *Transaction) error {
		return s.approveLine(ctx, line, approverID)
	})
	if err != nil {
		return nil, err
	}
	s.observe(string(StatusApproved), len(lines))
	s.record(ctx, approverID, "journal.approve", groupID.String(), map[string]any{"lines": len(lines)})
	return lines, nil
}

// PostEntry posts every line of a group in one transaction.
func (s *Service) PostEntry(ctx context.Context, companyID int64, groupID uuid.UUID, actorID int64) ([]Transaction, error) {
	if actorID <= 0 {
		return nil, shared.Invalid("actor_id", "actor required")
	}
	lines, err := s.forGroup(ctx, companyID, groupID, func(ctx context.Context, line *Transaction) error {
		return s.postLine(ctx, line, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.observe(string(StatusPosted), len(lines))
	s.record(ctx, actorID, "journal.post", groupID.String(), map[string]any{"lines": len(lines)})
	s.publish(ctx, shared.EventPosted, lines)
	return lines, nil
}

// PostClosingEntry writes year-end CLOSING lines directly as POSTED. It skips
// the period gate because the months it lands in are already closed, and
// must only be reached from fiscal year closing.
func (s *Service) PostClosingEntry(ctx context.Context, entry ClosingEntry) (uuid.UUID, []TransactionRef, error) {
	v := &shared.ValidationError{}
	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for i, line := range entry.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() || line.Debit.IsPositive() == line.Credit.IsPositive() {
			v.Add(i, "amount", "exactly one of debit or credit must be positive")
		}
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}
	if len(entry.Lines) == 0 {
		v.Add(shared.EntryLevel, "lines", "entry has no lines")
	}
	if !totalDebit.Equal(totalCredit) {
		v.Add(shared.EntryLevel, "lines", "debits %s do not equal credits %s", totalDebit, totalCredit)
	}
	if err := v.OrNil(); err != nil {
		return uuid.Nil, nil, err
	}
	var created []Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		groupID := uuid.New()
		pos := periods.PositionOf(entry.Date)
		at := s.now()
		for _, line := range entry.Lines {
			seq, err := s.repo.NextSequence(ctx, entry.CompanyID, TypeClosing, pos.Year, pos.Month)
			if err != nil {
				return err
			}
			t := Transaction{
				CompanyID:     entry.CompanyID,
				Number:        FormatNumber(TypeClosing, pos.Year, pos.Month, seq),
				GroupID:       groupID,
				Type:          TypeClosing,
				Date:          dateOnly(entry.Date),
				AccountID:     line.AccountID,
				Debit:         line.Debit,
				Credit:        line.Credit,
				Description:   entry.Description,
				FiscalYear:    pos.Year,
				FiscalMonth:   pos.Month,
				FiscalQuarter: pos.Quarter,
				Status:        StatusPosted,
				CreatedBy:     entry.ActorID,
				PostedBy:      &entry.ActorID,
				PostedAt:      &at,
			}
			inserted, err := s.repo.Insert(ctx, t)
			if err != nil {
				return err
			}
			if _, err := s.ledger.ApplyPosting(ctx, inserted.AccountID, inserted.Amount(), inserted.Side()); err != nil {
				return err
			}
			created = append(created, inserted)
		}
		return s.recordStrict(ctx, entry.ActorID, "journal.closing", groupID.String(), map[string]any{"lines": len(created)})
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	s.observe(string(StatusPosted), len(created))
	return created[0].GroupID, refs(created), nil
}

func (s *Service) Get(ctx context.Context, companyID, txID int64) (Transaction, error) {
	return s.repo.Get(ctx, companyID, txID)
}

func (s *Service) GetEntry(ctx context.Context, companyID int64, groupID uuid.UUID) ([]Transaction, error) {
	return s.repo.ListGroup(ctx, companyID, groupID, false)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) guard(t Transaction, to Status) error {
	if !CanTransition(t.Status, to) {
		return shared.Violation(shared.RuleIllegalTransition, "transaction %s cannot move from %s to %s", t.Number, t.Status, to)
	}
	return nil
}

func (s *Service) approveLine(ctx context.Context, line *Transaction, approverID int64) error {
	if err := s.guard(*line, StatusApproved); err != nil {
		return err
	}
	at := s.now()
	line.Status = StatusApproved
	line.ApprovedBy = &approverID
	line.ApprovedAt = &at
	return s.repo.UpdateStatus(ctx, *line)
}

func (s *Service) postLine(ctx context.Context, line *Transaction, actorID int64) error {
	if err := s.guard(*line, StatusPosted); err != nil {
		return err
	}
	if err := s.periods.EnsureOpenForPosting(ctx, line.CompanyID, line.Date); err != nil {
		return err
	}
	if _, err := s.ledger.ApplyPosting(ctx, line.AccountID, line.Amount(), line.Side()); err != nil {
		return err
	}
	at := s.now()
	line.Status = StatusPosted
	line.PostedBy = &actorID
	line.PostedAt = &at
	return s.repo.UpdateStatus(ctx, *line)
}

func (s *Service) forGroup(ctx context.Context, companyID int64, groupID uuid.UUID, fn func(context.Context, *Transaction) error) ([]Transaction, error) {
	var out []Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		lines, err := s.repo.ListGroup(ctx, companyID, groupID, true)
		if err != nil {
			return err
		}
		for i := range lines {
			if err := fn(ctx, &lines[i]); err != nil {
				return err
			}
		}
		out = lines
		return nil
	})
	return out, err
}

func (s *Service) postedOriginal(ctx context.Context, companyID, id int64) (Transaction, error) {
	if id <= 0 {
		return Transaction{}, shared.Invalid("original_transaction_id", "original transaction required")
	}
	original, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Transaction{}, err
	}
	if original.Status != StatusPosted {
		return Transaction{}, shared.Violation(shared.RuleOriginalNotPosted, "transaction %s is %s, only posted lines can be adjusted", original.Number, original.Status)
	}
	return original, nil
}

func (s *Service) insertLines(ctx context.Context, companyID int64, typ Type, createdBy int64, lines []LineInput, original *int64) ([]Transaction, error) {
	groupID := uuid.New()
	out := make([]Transaction, 0, len(lines))
	for _, line := range lines {
		date := dateOnly(line.Date)
		pos := periods.PositionOf(date)
		seq, err := s.repo.NextSequence(ctx, companyID, typ, pos.Year, pos.Month)
		if err != nil {
			return nil, err
		}
		inserted, err := s.repo.Insert(ctx, Transaction{
			CompanyID:             companyID,
			Number:                FormatNumber(typ, pos.Year, pos.Month, seq),
			GroupID:               groupID,
			Type:                  typ,
			Date:                  date,
			AccountID:             line.AccountID,
			Debit:                 line.Debit,
			Credit:                line.Credit,
			Description:           line.Description,
			Memo:                  line.Memo,
			FiscalYear:            pos.Year,
			FiscalMonth:           pos.Month,
			FiscalQuarter:         pos.Quarter,
			Status:                StatusDraft,
			CreatedBy:             createdBy,
			OriginalTransactionID: original,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func refs(lines []Transaction) []TransactionRef {
	out := make([]TransactionRef, 0, len(lines))
	for _, l := range lines {
		out = append(out, refOf(l))
	}
	return out
}

func (s *Service) record(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if err := s.recordStrict(ctx, actorID, action, entityID, meta); err != nil {
		s.logger.Warn("audit journal change", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) recordStrict(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "ledger_transaction",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) publish(ctx context.Context, kind shared.EventKind, lines []Transaction) {
	if s.events == nil || len(lines) == 0 {
		return
	}
	seen := map[int64]bool{}
	event := shared.Event{Kind: kind, CompanyID: lines[0].CompanyID, Year: lines[0].FiscalYear, Month: lines[0].FiscalMonth, At: s.now()}
	for _, l := range lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			event.AccountIDs = append(event.AccountIDs, l.AccountID)
		}
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish ledger event", slog.String("kind", string(kind)), slog.Any("error", err))
	}
}

func (s *Service) observe(status string, n int) {
	if s.metrics != nil && n > 0 {
		s.metrics.ObserveTransition(status, n)
	}
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.ObserveRejection(reason)
	}
}
