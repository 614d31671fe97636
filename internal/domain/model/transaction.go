package model

import (
	"time"

	"onepay-payment-adapter/internal/domain"
)

type TransactionState string

const (
	TransactionStateDraft     TransactionState = "draft"
	TransactionStatePending   TransactionState = "pending"
	TransactionStateDone      TransactionState = "done"      // terminal
	TransactionStateCancelled TransactionState = "cancelled" // terminal
)

// Transaction is one payment attempt. Reference is the merchant-assigned
// correlation key; AcquirerRef is filled in once the provider reports one.
// State changes only happen through the Set* methods below, which guard
// against re-firing side effects on duplicate notification delivery.
type Transaction struct {
	ID           string // UUID
	Reference    string // merchant reference (vpc_MerchTxnRef), stable
	Amount       float64
	Currency     string
	AcquirerID   string // owning AcquirerConfig
	AcquirerRef  string // provider-assigned reference (pspReference)
	State        TransactionState
	StateMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PaidAt       *time.Time

	// Optional shopper details forwarded on the cc request form.
	CustomerEmail string
	CustomerPhone string
	CustomerID    string
	CustomerIP    string
	OrderInfo     string
}

// NewTransaction creates a draft transaction for an initiated payment.
func NewTransaction(id, reference string, amount float64, currency, acquirerID string) (*Transaction, error) {
	if id == "" || reference == "" || currency == "" || acquirerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Transaction{
		ID:         id,
		Reference:  reference,
		Amount:     amount,
		Currency:   currency,
		AcquirerID: acquirerID,
		State:      TransactionStateDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (t *Transaction) terminal() bool {
	return t.State == TransactionStateDone || t.State == TransactionStateCancelled
}

// SetDone records an authorised payment. Returns false without touching the
// record when the transaction is already in a terminal state, so a duplicate
// notification never re-fires downstream side effects.
func (t *Transaction) SetDone(acquirerRef string, paidAt time.Time) bool {
	if t.terminal() {
		return false
	}
	t.AcquirerRef = acquirerRef
	t.State = TransactionStateDone
	t.StateMessage = ""
	t.PaidAt = &paidAt
	t.UpdatedAt = time.Now()
	return true
}

// SetPending records that the provider is still processing the payment.
func (t *Transaction) SetPending(acquirerRef, message string) bool {
	if t.terminal() || t.State == TransactionStatePending {
		return false
	}
	t.AcquirerRef = acquirerRef
	t.State = TransactionStatePending
	t.StateMessage = message
	t.UpdatedAt = time.Now()
	return true
}

// SetCancelled records a failed or cancelled payment with a diagnostic
// message for the operator log.
func (t *Transaction) SetCancelled(message string) bool {
	if t.terminal() {
		return false
	}
	t.State = TransactionStateCancelled
	t.StateMessage = message
	t.UpdatedAt = time.Now()
	return true
}

// FieldMismatch is one business-invariant discrepancy between a verified
// notification and the transaction it references. Mismatches are collected
// and reported; the caller decides whether any of them is fatal.
type FieldMismatch struct {
	Field    string
	Received string
	Expected string
}
