// Package ledger maintains running account balances from posted lines.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountResolver resolves company-scoped accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, companyID, accountID int64) (accounts.Account, error)
}

// Transactor runs balance updates in a transaction and reconciliations in a
// read-only snapshot.
type Transactor interface {
	shared.TxRunner
	shared.ReadRunner
}

// Service is the balance ledger. It is the only writer of accounts.current_balance.
type Service struct {
	repo     Repository
	accounts AccountResolver
	tx       Transactor
}

func NewService(repo Repository, resolver AccountResolver, tx Transactor) *Service {
	return &Service{repo: repo, accounts: resolver, tx: tx}
}

// SignedDelta returns +amount when side matches the normal side, otherwise -amount.
func SignedDelta(normal accounts.Side, amount decimal.Decimal, side accounts.Side) decimal.Decimal {
	if side == normal {
		return amount
	}
	return amount.Neg()
}

func normalSide(a accounts.Account) accounts.Side {
	if a.NormalSide.Valid() {
		return a.NormalSide
	}
	return a.Type.DefaultSide()
}

// LineDelta returns the signed effect of a debit/credit pair on an account.
func LineDelta(normal accounts.Side, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == accounts.SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// ApplyPosting locks the account row and adds the signed amount to its balance.
func (s *Service) ApplyPosting(ctx context.Context, accountID int64, amount decimal.Decimal, side accounts.Side) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, shared.Invalid("amount", "posting amount must be positive, got %s", amount)
	}
	if !side.Valid() {
		return decimal.Zero, shared.Invalid("side", "unknown side %q", side)
	}
	var balance decimal.Decimal
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		row, err := s.repo.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		normal := row.NormalSide
		if !normal.Valid() {
			normal = row.Type.DefaultSide()
		}
		balance = row.Balance.Add(SignedDelta(normal, amount, side))
		if err := s.repo.UpdateBalance(ctx, accountID, balance, row.Version); err != nil {
			return fmt.Errorf("ledger: update balance of account %d: %w", accountID, err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// ReversePosting undoes a previous ApplyPosting with the same arguments.
func (s *Service) ReversePosting(ctx context.Context, accountID int64, amount decimal.Decimal, side accounts.Side) (decimal.Decimal, error) {
	return s.ApplyPosting(ctx, accountID, amount, side.Opposite())
}

// CurrentBalance reads the cached balance; parents sum their descendant leaves.
func (s *Service) CurrentBalance(ctx context.Context, companyID, accountID int64) (decimal.Decimal, error) {
	account, err := s.accounts.Resolve(ctx, companyID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if account.IsLeaf {
		return account.CurrentBalance, nil
	}
	_, current, err := s.repo.SubtreeBalances(ctx, companyID, account.Path, normalSide(account))
	return current, err
}

// BalanceAsOf is the opening balance plus every signed POSTED movement dated
// on or before asOf.
func (s *Service) BalanceAsOf(ctx context.Context, companyID, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	account, err := s.accounts.Resolve(ctx, companyID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	side := normalSide(account)
	opening, _, err := s.repo.SubtreeBalances(ctx, companyID, account.Path, side)
	if err != nil {
		return decimal.Zero, err
	}
	delta, err := s.repo.SubtreePostedDelta(ctx, companyID, account.Path, side, &day)
	if err != nil {
		return decimal.Zero, err
	}
	return opening.Add(delta), nil
}

// Reconciliation compares the cached balance against posting history.
type Reconciliation struct {
	AccountID  int64
	Code       string
	Cached     decimal.Decimal
	Computed   decimal.Decimal
	Difference decimal.Decimal
}

// Consistent reports whether cache and history agree exactly.
func (r Reconciliation) Consistent() bool { return r.Difference.IsZero() }

// Reconcile recomputes an account's balance from history and compares it to
// the cache. Both reads share one snapshot so a concurrent posting cannot
// show up in only one of them.
func (s *Service) Reconcile(ctx context.Context, companyID, accountID int64) (Reconciliation, error) {
	var rec Reconciliation
	err := s.tx.InReadTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.Resolve(ctx, companyID, accountID)
		if err != nil {
			return err
		}
		side := normalSide(account)
		opening, cached, err := s.repo.SubtreeBalances(ctx, companyID, account.Path, side)
		if err != nil {
			return err
		}
		delta, err := s.repo.SubtreePostedDelta(ctx, companyID, account.Path, side, nil)
		if err != nil {
			return err
		}
		computed := opening.Add(delta)
		rec = Reconciliation{
			AccountID:  account.ID,
			Code:       account.Code,
			Cached:     cached,
			Computed:   computed,
			Difference: cached.Sub(computed),
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return rec, nil
}
