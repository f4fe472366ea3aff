package shared

import "context"

// TxRunner runs fn inside one database transaction carried on the context.
// Nested calls join the outer transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadRunner runs fn inside a read-only snapshot.
type ReadRunner interface {
	InReadTx(ctx context.Context, fn func(ctx context.Context) error) error
}
