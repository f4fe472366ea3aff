package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type Repository interface {
	Get(ctx context.Context, companyID int64, module, key string) (AccountMapping, error)
	List(ctx context.Context, companyID int64) ([]AccountMapping, error)
	Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, companyID int64, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, shared.Invalid("key", "module and key required")
	}
	normalized := strings.ToUpper(module)
	var mapping AccountMapping
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT company_id, module, key, account_id, created_at, updated_at
FROM account_mappings WHERE company_id=$1 AND module=$2 AND key=$3`, companyID, normalized, key).
		Scan(&mapping.CompanyID, &mapping.Module, &mapping.Key, &mapping.AccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, fmt.Errorf("%w: %s/%s", shared.ErrMappingNotFound, normalized, key)
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

func (r *repository) List(ctx context.Context, companyID int64) ([]AccountMapping, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT company_id, module, key, account_id, created_at, updated_at
FROM account_mappings WHERE company_id=$1 ORDER BY module, key`, companyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AccountMapping, error) {
		var m AccountMapping
		err := row.Scan(&m.CompanyID, &m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
		return m, err
	})
}

// Upsert creates the mapping or repoints it at a new account.
func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return AccountMapping{}, err
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO account_mappings (company_id, module, key, account_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
ON CONFLICT (company_id, module, key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()
RETURNING created_at, updated_at`, m.CompanyID, m.Module, m.Key, m.AccountID).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return AccountMapping{}, err
	}
	return m, nil
}
