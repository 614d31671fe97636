package notify

import (
	"context"

	"github.com/rs/zerolog"

	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/adapter"
)

var _ adapter.PaymentNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs the done event instead of delivering it anywhere.
// Confirmation email and similar fan-out live outside this service.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) PaymentDone(ctx context.Context, t *model.Transaction) error {
	n.log.Info().
		Str("reference", t.Reference).
		Str("acquirer_ref", t.AcquirerRef).
		Msg("payment done event")
	return nil
}
