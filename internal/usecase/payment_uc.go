package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/adapter"
	"onepay-payment-adapter/internal/domain/ports/repository"
	"onepay-payment-adapter/internal/infra/logging"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// Initiate creates a draft transaction and returns the signed provider
	// field set plus the form action URL the caller should submit it to.
	Initiate(ctx context.Context, acquirerID, reference string, amount float64, currency, returnURL string) (*model.Transaction, adapter.FieldSet, string, error)
}

type paymentUC struct {
	transactions repository.TransactionRepository
	acquirers    repository.AcquirerConfigRepository
	gateway      adapter.PaymentGateway
	log          *zerolog.Logger
}

func NewPaymentUseCase(
	transactions repository.TransactionRepository,
	acquirers repository.AcquirerConfigRepository,
	gateway adapter.PaymentGateway,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{transactions: transactions, acquirers: acquirers, gateway: gateway, log: logger}
}

func (u *paymentUC) Initiate(ctx context.Context, acquirerID, reference string, amount float64, currency, returnURL string) (*model.Transaction, adapter.FieldSet, string, error) {
	cfg, err := u.acquirers.FindByID(ctx, nil, acquirerID)
	if err != nil {
		return nil, nil, "", err
	}
	ctx = logging.WithAcquirerID(ctx, cfg.ID)

	t, err := model.NewTransaction(uuid.NewString(), reference, amount, currency, cfg.ID)
	if err != nil {
		return nil, nil, "", err
	}

	fields, err := u.gateway.BuildRequest(t, cfg, returnURL)
	if err != nil {
		return nil, nil, "", err
	}

	if err := u.transactions.Save(ctx, nil, t); err != nil {
		return nil, nil, "", err
	}
	logging.With(ctx, u.log).Info().
		Str("reference", t.Reference).
		Str("scheme", string(cfg.SignatureScheme())).
		Msg("payment initiated")
	return t, fields, cfg.FormActionURL(), nil
}
