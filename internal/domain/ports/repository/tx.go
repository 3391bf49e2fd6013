package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept a nil Tx and run against the pool in that case.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a transaction, committing when fn returns nil.
// Workspace creation uses it to insert the workspace, its owner membership and
// the trial subscription atomically.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
