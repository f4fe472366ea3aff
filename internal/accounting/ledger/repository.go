package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// BalanceRow is the locked balance state of a single account.
type BalanceRow struct {
	AccountID  int64
	CompanyID  int64
	Type       accounts.AccountType
	NormalSide accounts.Side
	Balance    decimal.Decimal
	Version    int64
}

// Repository reads and writes account balances.
type Repository interface {
	LockAccount(ctx context.Context, accountID int64) (BalanceRow, error)
	UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal, version int64) error
	// SubtreeBalances sums opening and cached balances of the leaves under path,
	// negating leaves whose normal side differs from side.
	SubtreeBalances(ctx context.Context, companyID int64, path string, side accounts.Side) (opening, current decimal.Decimal, err error)
	// SubtreePostedDelta sums POSTED movements under path dated on or before
	// asOf, signed for an account whose normal side is side.
	SubtreePostedDelta(ctx context.Context, companyID int64, path string, side accounts.Side, asOf *time.Time) (decimal.Decimal, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) LockAccount(ctx context.Context, accountID int64) (BalanceRow, error) {
	var row BalanceRow
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT id, company_id, type, normal_side, current_balance, version
FROM accounts WHERE id=$1 FOR UPDATE`, accountID).
		Scan(&row.AccountID, &row.CompanyID, &row.Type, &row.NormalSide, &row.Balance, &row.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BalanceRow{}, shared.NotFound("account", accountID)
		}
		return BalanceRow{}, err
	}
	return row, nil
}

func (r *repository) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal, version int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE accounts SET current_balance=$2, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$3`, accountID, balance, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *repository) SubtreeBalances(ctx context.Context, companyID int64, path string, side accounts.Side) (decimal.Decimal, decimal.Decimal, error) {
	var opening, current decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT
  COALESCE(SUM(CASE WHEN normal_side=$3 THEN opening_balance ELSE -opening_balance END),0),
  COALESCE(SUM(CASE WHEN normal_side=$3 THEN current_balance ELSE -current_balance END),0)
FROM accounts WHERE company_id=$1 AND is_leaf AND path LIKE $2 || '%'`, companyID, path, side).Scan(&opening, &current)
	return opening, current, err
}

// A line's effect depends only on the queried side: a contra leaf's own sign
// flip and the rollup negation cancel out.
func (r *repository) SubtreePostedDelta(ctx context.Context, companyID int64, path string, side accounts.Side, asOf *time.Time) (decimal.Decimal, error) {
	var delta decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN $3::text='DEBIT' THEN t.debit - t.credit ELSE t.credit - t.debit END),0)
FROM ledger_transactions t
JOIN accounts a ON a.id = t.account_id
WHERE t.company_id=$1 AND a.path LIKE $2 || '%' AND t.status='POSTED'
  AND ($4::date IS NULL OR t.transaction_date <= $4::date)`, companyID, path, side, asOf).Scan(&delta)
	return delta, err
}
