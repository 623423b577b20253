package domain

import "context"

// TxRunner executes fn inside a single transaction. Repository calls made
// with the context passed to fn join that transaction; if fn returns an
// error nothing is committed.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
