package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager runs a function inside a database transaction, passing
// the underlying handle via `qx`. Repositories accept `qx any` and detect a
// tx implementation-side (e.g. pgx.Tx), which lets them use
// SELECT ... FOR UPDATE on the read-modify-write path.
//
// The state machine relies on this: concurrent notifications for the same
// merchant reference must be serialized by the storage layer, because the
// core performs no locking of its own.
//
// Repositories MUST gracefully accept nil qx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
