package adapter

import (
	"context"

	"onepay-payment-adapter/internal/domain/model"
)

// FieldSet is an order-irrelevant mapping from provider field name to string
// value, representing one outbound request or one inbound notification
// payload. It is transient per call and never persisted.
type FieldSet map[string]string

// Clone returns a shallow copy so callers can mutate without aliasing.
func (f FieldSet) Clone() FieldSet {
	cp := make(FieldSet, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return cp
}

// QueryResult is the parsed body of a queryDR status response.
type QueryResult struct {
	Fields  FieldSet
	Success bool // vpc_TxnResponseCode == 0
}

// PaymentGateway is the hex port for the provider integration: it builds and
// signs outbound field sets, verifies inbound ones, and queries transaction
// status server-to-server.
type PaymentGateway interface {
	Name() string

	// BuildRequest maps a transaction and its acquirer config into the full
	// signed provider field set, ready to be form-encoded by the caller.
	BuildRequest(tx *model.Transaction, cfg *model.AcquirerConfig, returnURL string) (FieldSet, error)

	// VerifyNotification re-derives the expected signature over the raw
	// callback fields and checks it in constant time. A wrong signature is
	// domain.ErrSignatureMismatch; undecodable secrets or missing required
	// fields are domain.ErrMalformedInput.
	VerifyNotification(fields FieldSet, cfg *model.AcquirerConfig) error

	// QueryStatus performs the signed queryDR GET against the provider.
	QueryStatus(ctx context.Context, tx *model.Transaction, cfg *model.AcquirerConfig) (QueryResult, error)
}

// PaymentNotifier receives the single "done" event emitted when a
// transaction reaches the done state. Implementations fan out to email,
// chat, webhooks or nothing at all.
type PaymentNotifier interface {
	PaymentDone(ctx context.Context, t *model.Transaction) error
}
