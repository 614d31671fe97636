package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"onepay-payment-adapter/internal/domain"
	"onepay-payment-adapter/internal/domain/ports/repository"
)

// NewPgxPool builds a pgx pool from a DSN with a bounded connection count.
func NewPgxPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// execSQL runs an Exec against the tx handle when one is supplied, the pool
// otherwise. Repositories pass their qx straight through.
func execSQL(ctx context.Context, pool *pgxpool.Pool, qx any, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx, ok := qx.(pgx.Tx); ok && tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return pool.Exec(ctx, sql, args...)
}

// pickRow runs a single-row query against tx or pool.
func pickRow(ctx context.Context, pool *pgxpool.Pool, qx any, sql string, args ...any) pgx.Row {
	if tx, ok := qx.(pgx.Tx); ok && tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return pool.QueryRow(ctx, sql, args...)
}

// pickRows runs a multi-row query against tx or pool.
func pickRows(ctx context.Context, pool *pgxpool.Pool, qx any, sql string, args ...any) (pgx.Rows, error) {
	if tx, ok := qx.(pgx.Tx); ok && tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return pool.Query(ctx, sql, args...)
}

var _ repository.TransactionManager = (*txManager)(nil)

type txManager struct{ pool *pgxpool.Pool }

func NewTxManager(pool *pgxpool.Pool) *txManager {
	return &txManager{pool: pool}
}

// WithTx provides the external atomicity the state machine's contract
// demands: the notification use case re-reads the transaction FOR UPDATE
// inside fn, so concurrent deliveries for one reference serialize here.
func (m *txManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return fmt.Errorf("%w: begin tx", domain.ErrOperationFailed)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx", domain.ErrOperationFailed)
	}
	return nil
}
