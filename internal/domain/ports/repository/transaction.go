package repository

import (
	"context"
	"time"

	"onepay-payment-adapter/internal/domain/model"
)

// TransactionRepository persists payment transactions. FindByReference
// deliberately returns a slice: the notification validator must see
// ambiguous references (more than one match) and refuse them, never
// pick the first.
type TransactionRepository interface {
	Save(ctx context.Context, qx any, t *model.Transaction) error
	FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error)
	FindByReference(ctx context.Context, qx any, reference string) ([]*model.Transaction, error)
	ListPendingOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.Transaction, error)
}

type AcquirerConfigRepository interface {
	FindByID(ctx context.Context, qx any, id string) (*model.AcquirerConfig, error)
	List(ctx context.Context, qx any) ([]*model.AcquirerConfig, error)
}
