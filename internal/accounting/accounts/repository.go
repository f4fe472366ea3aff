package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists chart of accounts nodes.
type Repository interface {
	Get(ctx context.Context, companyID, id int64) (Account, error)
	GetByCode(ctx context.Context, companyID int64, code string) (Account, error)
	List(ctx context.Context, companyID int64) ([]Account, error)
	ListByCategory(ctx context.Context, companyID int64, category string) ([]Account, error)
	Insert(ctx context.Context, account Account) (Account, error)
	CountChildren(ctx context.Context, id int64) (int, error)
	MarkLeaf(ctx context.Context, id int64, leaf bool) error
	SetActive(ctx context.Context, id int64, active bool) error
	Reparent(ctx context.Context, account Account, parent *Account) error
	Delete(ctx context.Context, id int64) error
}

// ErrDuplicateCode indicates the company already owns the code.
var ErrDuplicateCode = fmt.Errorf("%w: account code already exists", shared.ErrValidation)

const accountColumns = `id, company_id, code, name, type, category, normal_side, parent_id, level, path, is_leaf, is_active, track_balance, opening_balance, current_balance, version, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository. Calls join the
// transaction carried on the context, if any.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Category, &a.NormalSide, &a.ParentID, &a.Level, &a.Path,
		&a.IsLeaf, &a.IsActive, &a.TrackBalance, &a.OpeningBalance, &a.CurrentBalance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Account, error) {
	a, err := scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 AND company_id=$2`, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", id)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	a, err := scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", code)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
}

func (r *repository) ListByCategory(ctx context.Context, companyID int64, category string) ([]Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND category=$2 ORDER BY code`, companyID, category)
}

func (r *repository) query(ctx context.Context, sql string, args ...any) ([]Account, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Insert stores the account and materialises its path from the parent's.
func (r *repository) Insert(ctx context.Context, a Account) (Account, error) {
	conn := db.Conn(ctx, r.pool)
	err := conn.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, category, normal_side, parent_id, level, path, is_leaf, is_active, track_balance, opening_balance, current_balance, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'',TRUE,TRUE,$9,$10,$10,1,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		a.CompanyID, a.Code, a.Name, a.Type, a.Category, a.NormalSide, a.ParentID, a.Level, a.TrackBalance, a.OpeningBalance).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_company_code") {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	a.Path = fmt.Sprintf("%s%d/", a.Path, a.ID)
	if _, err := conn.Exec(ctx, `UPDATE accounts SET path=$2 WHERE id=$1`, a.ID, a.Path); err != nil {
		return Account{}, err
	}
	a.IsLeaf, a.IsActive, a.Version = true, true, 1
	a.CurrentBalance = a.OpeningBalance
	return a, nil
}

func (r *repository) CountChildren(ctx context.Context, id int64) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1`, id).Scan(&n)
	return n, err
}

func (r *repository) MarkLeaf(ctx context.Context, id int64, leaf bool) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE accounts SET is_leaf=$2, version=version+1, updated_at=NOW() WHERE id=$1`, id, leaf)
	return err
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE accounts SET is_active=$2, version=version+1, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}

// Reparent moves the account under parent (nil for root) and rewrites level
// and path for its whole subtree.
func (r *repository) Reparent(ctx context.Context, a Account, parent *Account) error {
	var (
		parentID   *int64
		parentPath = "/"
		newLevel   = 1
	)
	if parent != nil {
		parentID = &parent.ID
		parentPath = parent.Path
		newLevel = parent.Level + 1
	}
	newPath := fmt.Sprintf("%s%d/", parentPath, a.ID)
	conn := db.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `UPDATE accounts SET parent_id=$2, version=version+1, updated_at=NOW() WHERE id=$1`, a.ID, parentID); err != nil {
		return err
	}
	_, err := conn.Exec(ctx, `UPDATE accounts
SET path = $3 || substr(path, length($2) + 1),
    level = level + $4,
    updated_at = NOW()
WHERE company_id=$1 AND path LIKE $2 || '%'`, a.CompanyID, a.Path, newPath, newLevel-a.Level)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}
