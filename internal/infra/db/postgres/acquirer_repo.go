package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"onepay-payment-adapter/internal/domain"
	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/repository"
)

var _ repository.AcquirerConfigRepository = (*acquirerRepo)(nil)

type acquirerRepo struct{ pool *pgxpool.Pool }

func NewAcquirerRepo(pool *pgxpool.Pool) *acquirerRepo {
	return &acquirerRepo{pool: pool}
}

const acquirerColumns = `id, merchant_account, access_code, secret_hash, scheme, environment, locale, query_user, query_password`

func (r *acquirerRepo) FindByID(ctx context.Context, qx any, id string) (*model.AcquirerConfig, error) {
	const q = `SELECT ` + acquirerColumns + ` FROM acquirers WHERE id=$1;`
	row := pickRow(ctx, r.pool, qx, q, id)
	return scanAcquirer(row)
}

func (r *acquirerRepo) List(ctx context.Context, qx any) ([]*model.AcquirerConfig, error) {
	const q = `SELECT ` + acquirerColumns + ` FROM acquirers ORDER BY id;`
	rows, err := pickRows(ctx, r.pool, qx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.AcquirerConfig
	for rows.Next() {
		c, err := scanAcquirer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// Upsert seeds configuration-declared acquirers at startup.
func (r *acquirerRepo) Upsert(ctx context.Context, qx any, c *model.AcquirerConfig) error {
	const q = `
INSERT INTO acquirers (` + acquirerColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  merchant_account=$2, access_code=$3, secret_hash=$4, scheme=$5, environment=$6, locale=$7, query_user=$8, query_password=$9;`

	_, err := execSQL(ctx, r.pool, qx, q,
		c.ID, c.MerchantAccount, c.AccessCode, c.SecretHash, c.Scheme, c.Environment, c.Locale, c.User, c.Password)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func scanAcquirer(row pgx.Row) (*model.AcquirerConfig, error) {
	c := &model.AcquirerConfig{}
	err := row.Scan(&c.ID, &c.MerchantAccount, &c.AccessCode, &c.SecretHash, &c.Scheme, &c.Environment, &c.Locale, &c.User, &c.Password)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}
