package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type Repository interface {
	Get(ctx context.Context, companyID int64, year, month int) (FiscalPeriod, error)
	// Ensure materialises an OPEN row so that it can be locked.
	Ensure(ctx context.Context, companyID int64, year, month int) error
	LockShared(ctx context.Context, companyID int64, year, month int) (FiscalPeriod, error)
	LockExclusive(ctx context.Context, companyID int64, year, month int) (FiscalPeriod, error)
	MarkClosed(ctx context.Context, companyID int64, year, month int, actorID int64, at time.Time) error
	MarkOpen(ctx context.Context, companyID int64, year, month int, actorID int64, at time.Time, reason string) error
	ListYear(ctx context.Context, companyID int64, year int) ([]FiscalPeriod, error)
}

const periodColumns = `company_id, fiscal_year, fiscal_month, status, closed_by, closed_at, reopened_by, reopened_at, COALESCE(reopen_reason, '')`

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanPeriod(row pgx.Row) (FiscalPeriod, error) {
	var p FiscalPeriod
	err := row.Scan(&p.CompanyID, &p.Year, &p.Month, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.ReopenedBy, &p.ReopenedAt, &p.ReopenReason)
	return p, err
}

func (r *repository) get(ctx context.Context, suffix string, companyID int64, year, month int) (FiscalPeriod, error) {
	p, err := scanPeriod(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE company_id=$1 AND fiscal_year=$2 AND fiscal_month=$3`+suffix, companyID, year, month))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return openPeriod(companyID, year, month), nil
		}
		return FiscalPeriod{}, err
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, companyID int64, year, month int) (FiscalPeriod, error) {
	return r.get(ctx, "", companyID, year, month)
}

func (r *repository) LockShared(ctx context.Context, companyID int64, year, month int) (FiscalPeriod, error) {
	return r.get(ctx, " FOR SHARE", companyID, year, month)
}

func (r *repository) LockExclusive(ctx context.Context, companyID int64, year, month int) (FiscalPeriod, error) {
	return r.get(ctx, " FOR UPDATE", companyID, year, month)
}

func (r *repository) Ensure(ctx context.Context, companyID int64, year, month int) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `INSERT INTO fiscal_periods (company_id, fiscal_year, fiscal_month, status, created_at, updated_at)
VALUES ($1,$2,$3,'OPEN',NOW(),NOW()) ON CONFLICT (company_id, fiscal_year, fiscal_month) DO NOTHING`, companyID, year, month)
	return err
}

func (r *repository) MarkClosed(ctx context.Context, companyID int64, year, month int, actorID int64, at time.Time) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE fiscal_periods SET status='CLOSED', closed_by=$4, closed_at=$5, updated_at=NOW()
WHERE company_id=$1 AND fiscal_year=$2 AND fiscal_month=$3`, companyID, year, month, actorID, at)
	return err
}

func (r *repository) MarkOpen(ctx context.Context, companyID int64, year, month int, actorID int64, at time.Time, reason string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE fiscal_periods SET status='OPEN', reopened_by=$4, reopened_at=$5, reopen_reason=$6, updated_at=NOW()
WHERE company_id=$1 AND fiscal_year=$2 AND fiscal_month=$3`, companyID, year, month, actorID, at, reason)
	return err
}

func (r *repository) ListYear(ctx context.Context, companyID int64, year int) ([]FiscalPeriod, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE company_id=$1 AND fiscal_year=$2 ORDER BY fiscal_month`, companyID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FiscalPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
