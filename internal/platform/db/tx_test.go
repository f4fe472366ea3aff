package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "deadlock wrapped", err: fmt.Errorf("post: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_accounts_company_code"})
	assert.True(t, IsUniqueViolation(err, "uq_accounts_company_code"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "uq_other"))
	assert.False(t, IsUniqueViolation(errors.New("x"), ""))
}

func TestIsLockUnavailable(t *testing.T) {
	assert.True(t, IsLockUnavailable(&pgconn.PgError{Code: "55P03"}))
	assert.False(t, IsLockUnavailable(&pgconn.PgError{Code: "40001"}))
}

func TestTransactorRequiresPool(t *testing.T) {
	var tr *Transactor
	err := tr.InTx(context.Background(), func(context.Context) error { return nil })
	require.Error(t, err)
	assert.False(t, InTransaction(context.Background()))
}
