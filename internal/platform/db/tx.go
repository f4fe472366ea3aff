package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// ErrConflict is returned once a transaction keeps losing to concurrent writers.
var ErrConflict = errors.New("platform/db: concurrency conflict, retry the operation")

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

type txKey struct{}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return withTxOptions(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

func withTxOptions(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// Transactor runs closures inside a transaction carried on the context so that
// repositories of different components join the same unit of work.
type Transactor struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// NewTransactor builds a Transactor. maxAttempts bounds retries on serialization failures.
func NewTransactor(pool *pgxpool.Pool, maxAttempts int) *Transactor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Transactor{pool: pool, maxAttempts: maxAttempts}
}

// InTx runs fn in a repeatable-read transaction. Nested calls join the outer transaction.
func (t *Transactor) InTx(ctx context.Context, fn func(context.Context) error) error {
	return t.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// InReadTx runs fn in a read-only repeatable-read snapshot.
func (t *Transactor) InReadTx(ctx context.Context, fn func(context.Context) error) error {
	return t.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (t *Transactor) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if t == nil || t.pool == nil {
		return errors.New("platform/db: transactor not initialised")
	}
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	for attempt := 1; ; attempt++ {
		err := withTxOptions(ctx, t.pool, opts, func(tx pgx.Tx) error {
			return fn(context.WithValue(ctx, txKey{}, tx))
		})
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= t.maxAttempts {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Conn returns the transaction stored on ctx, falling back to the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// IsLockUnavailable reports whether err came from a NOWAIT lock attempt.
func IsLockUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeLockNotAvailable
}

// IsUniqueViolation reports whether err violates the named unique constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
