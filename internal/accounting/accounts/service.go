package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// maxDepth bounds ancestor walks on corrupted trees.
const maxDepth = 64

// UsageChecker reports whether an account already carries ledger lines.
type UsageChecker interface {
	HasTransactions(ctx context.Context, accountID int64) (bool, error)
}

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service is the account registry.
type Service struct {
	repo   Repository
	usage  UsageChecker
	tx     shared.TxRunner
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, usage UsageChecker, tx shared.TxRunner, audit AuditPort) *Service {
	return &Service{repo: repo, usage: usage, tx: tx, audit: audit, logger: slog.Default(), now: time.Now}
}

// WithLogger replaces the logger used for non-fatal audit failures.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Resolve returns the account if it belongs to companyID.
func (s *Service) Resolve(ctx context.Context, companyID, accountID int64) (Account, error) {
	return s.repo.Get(ctx, companyID, accountID)
}

// IsLeaf reports whether the account has no children.
func (s *Service) IsLeaf(a Account) bool { return a.IsLeaf }

// NormalSide returns the side on which the account's balance increases.
func (s *Service) NormalSide(a Account) Side {
	if a.NormalSide.Valid() {
		return a.NormalSide
	}
	return a.Type.DefaultSide()
}

func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.List(ctx, companyID)
}

// RetainedEarnings resolves the company's single active retained earnings leaf.
func (s *Service) RetainedEarnings(ctx context.Context, companyID int64) (Account, error) {
	candidates, err := s.repo.ListByCategory(ctx, companyID, CategoryRetainedEarnings)
	if err != nil {
		return Account{}, err
	}
	var found []Account
	for _, a := range candidates {
		if a.Type == AccountTypeEquity && a.Postable() {
			found = append(found, a)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return Account{}, shared.Violation(shared.RuleRetainedEarnings, "company %d has no active retained earnings account", companyID)
	default:
		return Account{}, shared.Violation(shared.RuleRetainedEarnings, "company %d has %d retained earnings accounts, pass one explicitly", companyID, len(found))
	}
}

// Create inserts a chart node. A parent gains a child only while it carries no lines.
func (s *Service) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	trackBalance := true
	if in.TrackBalance != nil {
		trackBalance = *in.TrackBalance
	}
	account := Account{
		CompanyID:      in.CompanyID,
		Code:           in.Code,
		Name:           in.Name,
		Type:           in.Type,
		Category:       in.Category,
		NormalSide:     in.NormalSide,
		Level:          1,
		Path:           "/",
		TrackBalance:   trackBalance,
		OpeningBalance: in.OpeningBalance,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if in.ParentID != nil {
			parent, err := s.attachableParent(ctx, in.CompanyID, *in.ParentID, in.Type)
			if err != nil {
				return err
			}
			if err := s.walkAncestors(ctx, parent, 0); err != nil {
				return err
			}
			account.ParentID = &parent.ID
			account.Level = parent.Level + 1
			account.Path = parent.Path
			if parent.IsLeaf {
				if err := s.repo.MarkLeaf(ctx, parent.ID, false); err != nil {
					return err
				}
			}
		}
		inserted, err := s.repo.Insert(ctx, account)
		if err != nil {
			return err
		}
		account = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.create", account.ID, map[string]any{"code": account.Code, "type": account.Type})
	return account, nil
}

// Move re-parents an account, rejecting moves that would create a cycle.
func (s *Service) Move(ctx context.Context, in MoveInput) (Account, error) {
	var moved Account
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		account, err := s.repo.Get(ctx, in.CompanyID, in.AccountID)
		if err != nil {
			return err
		}
		var parent *Account
		if in.ParentID != nil {
			if *in.ParentID == account.ID {
				return shared.Violation(shared.RuleAccountHierarchy, "account %d cannot be its own parent", account.ID)
			}
			p, err := s.attachableParent(ctx, in.CompanyID, *in.ParentID, account.Type)
			if err != nil {
				return err
			}
			if err := s.walkAncestors(ctx, p, account.ID); err != nil {
				return err
			}
			parent = &p
		}
		oldParent := account.ParentID
		if err := s.repo.Reparent(ctx, account, parent); err != nil {
			return err
		}
		if parent != nil && parent.IsLeaf {
			if err := s.repo.MarkLeaf(ctx, parent.ID, false); err != nil {
				return err
			}
		}
		if oldParent != nil {
			remaining, err := s.repo.CountChildren(ctx, *oldParent)
			if err != nil {
				return err
			}
			if remaining == 0 {
				if err := s.repo.MarkLeaf(ctx, *oldParent, true); err != nil {
					return err
				}
			}
		}
		moved, err = s.repo.Get(ctx, in.CompanyID, in.AccountID)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.move", moved.ID, map[string]any{"parent_id": in.ParentID})
	return moved, nil
}

// Deactivate stops an account from accepting new lines. History is kept.
func (s *Service) Deactivate(ctx context.Context, companyID, accountID, actorID int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.Get(ctx, companyID, accountID); err != nil {
			return err
		}
		return s.repo.SetActive(ctx, accountID, false)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "account.deactivate", accountID, nil)
	return nil
}

// Delete removes an account that has neither children nor ledger lines.
func (s *Service) Delete(ctx context.Context, companyID, accountID, actorID int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		account, err := s.repo.Get(ctx, companyID, accountID)
		if err != nil {
			return err
		}
		children, err := s.repo.CountChildren(ctx, accountID)
		if err != nil {
			return err
		}
		if children > 0 {
			return shared.Violation(shared.RuleAccountHierarchy, "account %s has %d children", account.Code, children)
		}
		used, err := s.usage.HasTransactions(ctx, accountID)
		if err != nil {
			return err
		}
		if used {
			return shared.Violation(shared.RuleAccountInUse, "account %s has transactions, deactivate it instead", account.Code)
		}
		if err := s.repo.Delete(ctx, accountID); err != nil {
			return err
		}
		if account.ParentID != nil {
			remaining, err := s.repo.CountChildren(ctx, *account.ParentID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				return s.repo.MarkLeaf(ctx, *account.ParentID, true)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "account.delete", accountID, nil)
	return nil
}

func (s *Service) attachableParent(ctx context.Context, companyID, parentID int64, childType AccountType) (Account, error) {
	parent, err := s.repo.Get(ctx, companyID, parentID)
	if err != nil {
		return Account{}, err
	}
	if parent.Type != childType {
		return Account{}, shared.Violation(shared.RuleAccountHierarchy, "parent %s is %s, child is %s", parent.Code, parent.Type, childType)
	}
	if parent.IsLeaf {
		used, err := s.usage.HasTransactions(ctx, parent.ID)
		if err != nil {
			return Account{}, err
		}
		if used {
			return Account{}, shared.Violation(shared.RuleAccountInUse, "parent %s already has transactions", parent.Code)
		}
		if !parent.OpeningBalance.IsZero() {
			return Account{}, shared.Violation(shared.RuleAccountInUse, "parent %s carries an opening balance", parent.Code)
		}
	}
	return parent, nil
}

// walkAncestors follows parent links from start and fails if it reaches
// forbidden or loops.
func (s *Service) walkAncestors(ctx context.Context, start Account, forbidden int64) error {
	seen := map[int64]bool{}
	current := start
	for depth := 0; ; depth++ {
		if current.ID == forbidden || seen[current.ID] {
			return shared.Violation(shared.RuleAccountHierarchy, "account %d would become its own ancestor", forbidden)
		}
		if depth > maxDepth {
			return shared.Violation(shared.RuleAccountHierarchy, "hierarchy deeper than %d levels", maxDepth)
		}
		seen[current.ID] = true
		if current.ParentID == nil {
			return nil
		}
		next, err := s.repo.Get(ctx, current.CompanyID, *current.ParentID)
		if err != nil {
			return err
		}
		current = next
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, accountID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", accountID),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit account change", slog.String("action", action), slog.Int64("account_id", accountID), slog.Any("error", err))
	}
}
