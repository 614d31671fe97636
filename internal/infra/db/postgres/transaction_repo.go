package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"onepay-payment-adapter/internal/domain"
	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const txColumns = `id, reference, amount, currency, acquirer_id, acquirer_ref, state, state_message, created_at, updated_at, paid_at, customer_email, customer_phone, customer_id, customer_ip, order_info`

func (r *transactionRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + txColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  acquirer_ref=$6, state=$7, state_message=$8, updated_at=$10, paid_at=$11;`

	_, err := execSQL(ctx, r.pool, qx, q,
		t.ID, t.Reference, t.Amount, t.Currency, t.AcquirerID, t.AcquirerRef,
		t.State, t.StateMessage, t.CreatedAt, t.UpdatedAt, t.PaidAt,
		t.CustomerEmail, t.CustomerPhone, t.CustomerID, t.CustomerIP, t.OrderInfo)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions WHERE id=$1`
	// Inside a tx the caller is on the read-modify-write path; take the row lock.
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row := pickRow(ctx, r.pool, qx, q+";", id)
	return scanTransaction(row)
}

func (r *transactionRepo) FindByReference(ctx context.Context, qx any, reference string) ([]*model.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions WHERE reference=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	rows, err := pickRows(ctx, r.pool, qx, q+";", reference)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	const q = `SELECT ` + txColumns + ` FROM transactions
WHERE state=$1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3;`

	rows, err := pickRows(ctx, r.pool, qx, q, model.TransactionStatePending, cutoff, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := row.Scan(&t.ID, &t.Reference, &t.Amount, &t.Currency, &t.AcquirerID, &t.AcquirerRef,
		&t.State, &t.StateMessage, &t.CreatedAt, &t.UpdatedAt, &t.PaidAt,
		&t.CustomerEmail, &t.CustomerPhone, &t.CustomerID, &t.CustomerIP, &t.OrderInfo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}
