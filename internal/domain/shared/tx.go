package shared

import "context"

// Transactor groups several repository calls into one atomic unit.
// Repositories resolve the active transaction from ctx, so handlers only
// pass the ctx they received in fn.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
