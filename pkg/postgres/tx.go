package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TxManager runs a function inside a database transaction. If a transaction is
// already carried by the context, the function joins it instead of opening a
// nested one; the outermost caller owns commit/rollback.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type SQLTxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *SQLTxManager {
	return &SQLTxManager{db: db}
}

func (m *SQLTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// TxFromContext returns the transaction carried by ctx, or nil.
func TxFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// ExtFromContext returns the transaction carried by ctx, falling back to db.
func ExtFromContext(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

// NoOpTxManager executes the function without a real transaction. Used in tests
// against in-memory repositories.
type NoOpTxManager struct{}

func (NoOpTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
