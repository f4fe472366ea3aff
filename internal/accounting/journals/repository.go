package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists ledger lines. Every method joins the transaction on ctx.
type Repository interface {
	NextSequence(ctx context.Context, companyID int64, t Type, year, month int) (int64, error)
	Insert(ctx context.Context, tx Transaction) (Transaction, error)
	Get(ctx context.Context, companyID, id int64) (Transaction, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Transaction, error)
	ListGroup(ctx context.Context, companyID int64, groupID uuid.UUID, forUpdate bool) ([]Transaction, error)
	UpdateStatus(ctx context.Context, tx Transaction) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
	CountPending(ctx context.Context, companyID int64, year, month int) (int, error)
	PostedYears(ctx context.Context, companyID int64, before int) ([]int, error)
	HasTransactions(ctx context.Context, accountID int64) (bool, error)
}

const transactionColumns = `id, company_id, number, group_id, type, transaction_date, account_id, debit, credit, description, memo,
fiscal_year, fiscal_month, fiscal_quarter, status, created_by, created_at, approved_by, approved_at, posted_by, posted_at,
cancelled_by, cancelled_at, COALESCE(cancel_reason, ''), original_transaction_id, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.CompanyID, &t.Number, &t.GroupID, &t.Type, &t.Date, &t.AccountID, &t.Debit, &t.Credit, &t.Description, &t.Memo,
		&t.FiscalYear, &t.FiscalMonth, &t.FiscalQuarter, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.ApprovedBy, &t.ApprovedAt, &t.PostedBy, &t.PostedAt,
		&t.CancelledBy, &t.CancelledAt, &t.CancelReason, &t.OriginalTransactionID, &t.UpdatedAt)
	return t, err
}

func (r *repository) NextSequence(ctx context.Context, companyID int64, t Type, year, month int) (int64, error) {
	var seq int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO transaction_sequences (company_id, type, fiscal_year, fiscal_month, last_value)
VALUES ($1,$2,$3,$4,1)
ON CONFLICT (company_id, type, fiscal_year, fiscal_month) DO UPDATE SET last_value = transaction_sequences.last_value + 1
RETURNING last_value`, companyID, t, year, month).Scan(&seq)
	return seq, err
}

func (r *repository) Insert(ctx context.Context, t Transaction) (Transaction, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO ledger_transactions (company_id, number, group_id, type, transaction_date, account_id, debit, credit,
description, memo, fiscal_year, fiscal_month, fiscal_quarter, status, created_by, posted_by, posted_at, original_transaction_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		t.CompanyID, t.Number, t.GroupID, t.Type, t.Date, t.AccountID, t.Debit, t.Credit, t.Description, t.Memo,
		t.FiscalYear, t.FiscalMonth, t.FiscalQuarter, t.Status, t.CreatedBy, t.PostedBy, t.PostedAt, t.OriginalTransactionID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("journals: insert line %s: %w", t.Number, err)
	}
	return t, nil
}

func (r *repository) get(ctx context.Context, suffix string, companyID, id int64) (Transaction, error) {
	t, err := scanTransaction(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+transactionColumns+` FROM ledger_transactions WHERE id=$1 AND company_id=$2`+suffix, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.NotFound("transaction", id)
		}
		return Transaction{}, err
	}
	return t, nil
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Transaction, error) {
	return r.get(ctx, "", companyID, id)
}

func (r *repository) GetForUpdate(ctx context.Context, companyID, id int64) (Transaction, error) {
	return r.get(ctx, " FOR UPDATE", companyID, id)
}

func (r *repository) ListGroup(ctx context.Context, companyID int64, groupID uuid.UUID, forUpdate bool) ([]Transaction, error) {
	sql := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE company_id=$1 AND group_id=$2 ORDER BY id`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	lines, err := r.query(ctx, sql, companyID, groupID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, shared.NotFound("journal entry", groupID)
	}
	return lines, nil
}

func (r *repository) UpdateStatus(ctx context.Context, t Transaction) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE ledger_transactions
SET status=$2, approved_by=$3, approved_at=$4, posted_by=$5, posted_at=$6, cancelled_by=$7, cancelled_at=$8, cancel_reason=NULLIF($9, ''), updated_at=NOW()
WHERE id=$1`, t.ID, t.Status, t.ApprovedBy, t.ApprovedAt, t.PostedBy, t.PostedAt, t.CancelledBy, t.CancelledAt, t.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("transaction", t.ID)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM ledger_transactions WHERE id=$1 AND status IN ('DRAFT','APPROVED')`, id)
	return err
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Transaction, error) {
	var (
		where = []string{"company_id=$1"}
		args  = []any{f.CompanyID}
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("status=$%d", f.Status)
	}
	if f.AccountID > 0 {
		add("account_id=$%d", f.AccountID)
	}
	if f.From != nil {
		add("transaction_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("transaction_date <= $%d", *f.To)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, f.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM ledger_transactions WHERE %s ORDER BY transaction_date, id LIMIT $%d OFFSET $%d`,
		transactionColumns, strings.Join(where, " AND "), len(args)-1, len(args))
	return r.query(ctx, sql, args...)
}

func (r *repository) query(ctx context.Context, sql string, args ...any) ([]Transaction, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) CountPending(ctx context.Context, companyID int64, year, month int) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM ledger_transactions
WHERE company_id=$1 AND fiscal_year=$2 AND fiscal_month=$3 AND status IN ('DRAFT','APPROVED')`, companyID, year, month).Scan(&n)
	return n, err
}

// PostedYears lists, ascending, the fiscal years before the given one that
// carry posted lines.
func (r *repository) PostedYears(ctx context.Context, companyID int64, before int) ([]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT DISTINCT fiscal_year FROM ledger_transactions
WHERE company_id=$1 AND fiscal_year < $2 AND status='POSTED' ORDER BY fiscal_year`, companyID, before)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (r *repository) HasTransactions(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_transactions WHERE account_id=$1)`, accountID).Scan(&exists)
	return exists, err
}
