package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Window selects posted lines for aggregation. A nil Start aggregates from the
// beginning of history, leaving Opening at the configured opening balance.
type Window struct {
	Start          *time.Time
	End            time.Time
	ExcludeClosing bool
}

// Repository aggregates posted ledger lines.
type Repository interface {
	// Balances returns every company account with its opening before Start and
	// posted debit and credit sums inside the window.
	Balances(ctx context.Context, companyID int64, w Window) ([]AccountBalance, error)
	// Lines returns posted lines under path inside [start, end] in (date, id) order.
	Lines(ctx context.Context, companyID int64, path string, start, end time.Time) ([]LedgerLine, error)
	// PostedTotals sums debits and credits of every posted line dated on or before asOf.
	PostedTotals(ctx context.Context, companyID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const balancesSQL = `SELECT a.id, a.parent_id, a.code, a.name, a.type, a.normal_side, a.is_leaf, a.track_balance,
  a.opening_balance + COALESCE(SUM(CASE WHEN $2::date IS NOT NULL AND t.transaction_date < $2::date THEN
    CASE WHEN a.normal_side='DEBIT' THEN t.debit - t.credit ELSE t.credit - t.debit END END), 0),
  COALESCE(SUM(t.debit) FILTER (WHERE $2::date IS NULL OR t.transaction_date >= $2::date), 0),
  COALESCE(SUM(t.credit) FILTER (WHERE $2::date IS NULL OR t.transaction_date >= $2::date), 0)
FROM accounts a
LEFT JOIN ledger_transactions t ON t.account_id = a.id AND t.status='POSTED'
  AND t.transaction_date <= $3::date AND (NOT $4 OR t.type <> 'CLOSING')
WHERE a.company_id=$1
GROUP BY a.id
ORDER BY a.code`

func (r *repository) Balances(ctx context.Context, companyID int64, w Window) ([]AccountBalance, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, balancesSQL, companyID, w.Start, w.End, w.ExcludeClosing)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AccountBalance, error) {
		var b AccountBalance
		err := row.Scan(&b.AccountID, &b.ParentID, &b.Code, &b.Name, &b.Type, &b.NormalSide, &b.IsLeaf, &b.TrackBalance,
			&b.Opening, &b.Debit, &b.Credit)
		return b, err
	})
}

func (r *repository) Lines(ctx context.Context, companyID int64, path string, start, end time.Time) ([]LedgerLine, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT t.id, t.number, t.group_id, t.transaction_date, t.account_id,
  COALESCE(t.description, ''), t.debit, t.credit
FROM ledger_transactions t
JOIN accounts a ON a.id = t.account_id
WHERE t.company_id=$1 AND a.path LIKE $2 || '%' AND t.status='POSTED'
  AND t.transaction_date BETWEEN $3::date AND $4::date
ORDER BY t.transaction_date, t.id`, companyID, path, start, end)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LedgerLine, error) {
		var l LedgerLine
		err := row.Scan(&l.TransactionID, &l.Number, &l.GroupID, &l.Date, &l.AccountID, &l.Description, &l.Debit, &l.Credit)
		return l, err
	})
}

func (r *repository) PostedTotals(ctx context.Context, companyID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM ledger_transactions WHERE company_id=$1 AND status='POSTED' AND transaction_date <= $2::date`, companyID, asOf).
		Scan(&debit, &credit)
	return debit, credit, err
}
