package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"onepay-payment-adapter/internal/domain"
	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/adapter"
	"onepay-payment-adapter/internal/domain/ports/repository"
	"onepay-payment-adapter/internal/infra/adapters/onepay"
	"onepay-payment-adapter/internal/infra/logging"
	"onepay-payment-adapter/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// HandleNotification validates one inbound callback payload and, if the
	// signature checks out, advances the matched transaction's state.
	// Business-invariant mismatches are returned for the caller to judge;
	// they never abort processing on their own.
	HandleNotification(ctx context.Context, fields adapter.FieldSet) (*model.Transaction, []model.FieldMismatch, error)

	// HandleAsync processes the eventCode/success server-to-server ping. It
	// only checks state consistency and logs; it never mutates state.
	HandleAsync(ctx context.Context, fields adapter.FieldSet)

	// Reconcile re-queries the provider for a stale pending transaction and
	// finalizes it when the provider reports success.
	Reconcile(ctx context.Context, t *model.Transaction) error
}

type notificationUC struct {
	transactions repository.TransactionRepository
	acquirers    repository.AcquirerConfigRepository
	gateway      adapter.PaymentGateway
	tm           repository.TransactionManager
	locker       adapter.ReferenceLocker
	notifier     adapter.PaymentNotifier
	lockTTL      time.Duration
	log          *zerolog.Logger
}

func NewNotificationUseCase(
	transactions repository.TransactionRepository,
	acquirers repository.AcquirerConfigRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	locker adapter.ReferenceLocker,
	notifier adapter.PaymentNotifier,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *notificationUC {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &notificationUC{
		transactions: transactions,
		acquirers:    acquirers,
		gateway:      gateway,
		tm:           tm,
		locker:       locker,
		notifier:     notifier,
		lockTTL:      lockTTL,
		log:          logger,
	}
}

func (u *notificationUC) HandleNotification(ctx context.Context, fields adapter.FieldSet) (*model.Transaction, []model.FieldMismatch, error) {
	start := time.Now()
	result, reason := "ok", ""
	defer func() {
		metrics.NotificationTotal.WithLabelValues(result, reason).Inc()
		metrics.NotificationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	t, cfg, err := u.matchTransaction(ctx, fields)
	if err != nil {
		result, reason = "rejected", "unknown_tx"
		return nil, nil, err
	}
	scheme := cfg.SignatureScheme()

	if err := u.gateway.VerifyNotification(fields, cfg); err != nil {
		if err == domain.ErrSignatureMismatch {
			result, reason = "rejected", "bad_signature"
			u.log.Warn().
				Str("reference", t.Reference).
				Str("received_hash", logging.Redact(fields[onepay.FieldSecureHash], false)).
				Msg("secure hash mismatch, notification rejected")
		} else {
			result, reason = "rejected", "malformed"
		}
		return nil, nil, err
	}

	// The cc flow additionally confirms the feedback against the provider's
	// queryDR endpoint before trusting it.
	declined := false
	if scheme == model.SchemeCC {
		qr, err := u.gateway.QueryStatus(ctx, t, cfg)
		if err != nil {
			result, reason = "rejected", "malformed"
			return nil, nil, fmt.Errorf("status query: %w", err)
		}
		declined = !qr.Success
	}

	mismatches := u.collectMismatches(t, cfg, fields, scheme)
	for _, m := range mismatches {
		metrics.BusinessMismatches.WithLabelValues(m.Field).Inc()
		u.log.Warn().
			Str("reference", t.Reference).
			Str("field", m.Field).
			Str("received", m.Received).
			Str("expected", m.Expected).
			Msg("notification field mismatch")
	}

	status := decodeStatus(scheme, fields)
	if declined {
		status = decodedStatus{kind: statusCancelled, message: "provider declined feedback validation"}
	}

	out, err := u.commitStatus(ctx, t, status)
	if err != nil {
		result, reason = "rejected", "storage"
		if err == domain.ErrLockUnavailable {
			reason = "locked"
		}
		return nil, mismatches, err
	}
	return out, mismatches, nil
}

func (u *notificationUC) HandleAsync(ctx context.Context, fields adapter.FieldSet) {
	if fields[onepay.FieldEventCode] != "AUTHORISATION" {
		return
	}
	ref := fields[onepay.FieldReference]
	if ref == "" {
		return
	}
	matches, err := u.transactions.FindByReference(ctx, nil, ref)
	if err != nil || len(matches) == 0 {
		u.log.Warn().Str("reference", ref).Msg("async notification for unknown reference")
		return
	}
	t := matches[0]
	success := fields[onepay.FieldSuccess]
	consistent := (success == "true" && t.State == model.TransactionStateDone) ||
		(success == "false" && t.State == model.TransactionStateCancelled)
	ev := u.log.Warn()
	if consistent {
		ev = u.log.Info()
	}
	ev.Str("reference", ref).
		Str("success", success).
		Str("state", string(t.State)).
		Msg("async notification state check")
}

func (u *notificationUC) Reconcile(ctx context.Context, t *model.Transaction) error {
	cfg, err := u.acquirers.FindByID(ctx, nil, t.AcquirerID)
	if err != nil {
		return err
	}
	qr, err := u.gateway.QueryStatus(ctx, t, cfg)
	if err != nil {
		return err
	}
	if !qr.Success {
		// Provider has not settled the payment yet; the next sweep retries.
		u.log.Debug().Str("reference", t.Reference).Msg("queryDR not settled")
		return nil
	}

	status := decodedStatus{
		kind:        statusDone,
		acquirerRef: qr.Fields[onepay.FieldReference],
		paidAt:      time.Now(),
	}
	if ts, err := onepay.ParseAuthDate(qr.Fields[onepay.FieldAuthenticationDate]); err == nil {
		status.paidAt = ts
	}
	_, err = u.commitStatus(ctx, t, status)
	return err
}

// matchTransaction resolves the merchant reference to exactly one
// transaction and its acquirer config. Zero or multiple matches are a hard
// failure; picking the first would let a colliding reference move money.
func (u *notificationUC) matchTransaction(ctx context.Context, fields adapter.FieldSet) (*model.Transaction, *model.AcquirerConfig, error) {
	ref := fields[onepay.FieldReference]
	if ref == "" {
		return nil, nil, fmt.Errorf("%w: missing %s", domain.ErrUnknownTransaction, onepay.FieldReference)
	}
	matches, err := u.transactions.FindByReference(ctx, nil, ref)
	if err != nil {
		return nil, nil, err
	}
	switch len(matches) {
	case 1:
	case 0:
		return nil, nil, fmt.Errorf("%w: no order found for %s", domain.ErrUnknownTransaction, ref)
	default:
		return nil, nil, fmt.Errorf("%w: multiple orders found for %s", domain.ErrUnknownTransaction, ref)
	}
	t := matches[0]

	cfg, err := u.acquirers.FindByID(ctx, nil, t.AcquirerID)
	if err != nil {
		return nil, nil, err
	}
	return t, cfg, nil
}

// collectMismatches cross-checks the notification against what we already
// know about the transaction. All discrepancies are collected, never
// short-circuited.
func (u *notificationUC) collectMismatches(t *model.Transaction, cfg *model.AcquirerConfig, fields adapter.FieldSet, scheme model.SignatureScheme) []model.FieldMismatch {
	var out []model.FieldMismatch
	add := func(field, received, expected string) {
		out = append(out, model.FieldMismatch{Field: field, Received: received, Expected: expected})
	}

	if scheme == model.SchemeCC {
		if t.AcquirerRef != "" && fields[onepay.FieldReference] != t.AcquirerRef {
			add(onepay.FieldReference, fields[onepay.FieldReference], t.AcquirerRef)
		}
		if v, ok := fields[onepay.FieldMerchant]; ok && v != cfg.MerchantAccount {
			add(onepay.FieldMerchant, v, cfg.MerchantAccount)
		}
		if v, ok := fields[onepay.FieldAmount]; ok {
			if minor, err := strconv.ParseInt(v, 10, 64); err != nil || !amountsEqual(float64(minor)/100, t.Amount) {
				add(onepay.FieldAmount, v, fmt.Sprintf("%.2f", t.Amount))
			}
		}
		currency := fields[onepay.FieldCurrency]
		if currency == "" {
			currency = "VND"
		}
		if currency != t.Currency {
			add(onepay.FieldCurrency, currency, t.Currency)
		}
		return out
	}

	if t.AcquirerRef != "" && fields[onepay.FieldPSPReference] != t.AcquirerRef {
		add(onepay.FieldPSPReference, fields[onepay.FieldPSPReference], t.AcquirerRef)
	}
	if fields[onepay.FieldAccessCode] != cfg.AccessCode {
		add(onepay.FieldAccessCode, fields[onepay.FieldAccessCode], cfg.AccessCode)
	}
	if v, ok := fields[onepay.FieldMerchant]; ok && v != cfg.MerchantAccount {
		add(onepay.FieldMerchant, v, cfg.MerchantAccount)
	}
	if v, ok := fields[onepay.FieldAmount]; ok {
		if minor, err := strconv.ParseInt(v, 10, 64); err != nil || !amountsEqual(model.MajorUnits(minor, t.Currency), t.Amount) {
			add(onepay.FieldAmount, v, fmt.Sprintf("%.2f", t.Amount))
		}
	}
	if v, ok := fields[onepay.FieldCurrencyCode]; ok && v != t.Currency {
		add(onepay.FieldCurrencyCode, v, t.Currency)
	}
	if fields[onepay.FieldAuthResult] == "" {
		add(onepay.FieldAuthResult, "", "non-empty status")
	}
	return out
}

// amountsEqual compares with a fixed two-decimal tolerance.
func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

type statusKind int

const (
	statusDone statusKind = iota
	statusPending
	statusCancelled
)

type decodedStatus struct {
	kind        statusKind
	acquirerRef string
	message     string
	paidAt      time.Time
}

// decodeStatus interprets the variant-specific status encoding: exact string
// match for the redirect schemes, numeric response code for cc.
func decodeStatus(scheme model.SignatureScheme, fields adapter.FieldSet) decodedStatus {
	if scheme == model.SchemeCC {
		code, err := strconv.Atoi(fields[onepay.FieldTxnResponseCode])
		if err != nil {
			return decodedStatus{kind: statusCancelled, message: "missing or malformed " + onepay.FieldTxnResponseCode}
		}
		if code == 0 {
			paidAt := time.Now()
			if ts, perr := onepay.ParseAuthDate(fields[onepay.FieldAuthenticationDate]); perr == nil {
				paidAt = ts
			}
			return decodedStatus{kind: statusDone, acquirerRef: fields[onepay.FieldReference], paidAt: paidAt}
		}
		return decodedStatus{
			kind:        statusPending,
			acquirerRef: fields[onepay.FieldReference],
			message:     fields[onepay.FieldPendingReason],
		}
	}

	switch fields[onepay.FieldAuthResult] {
	case "AUTHORISED":
		return decodedStatus{kind: statusDone, acquirerRef: fields[onepay.FieldPSPReference], paidAt: time.Now()}
	case "PENDING":
		return decodedStatus{kind: statusPending, acquirerRef: fields[onepay.FieldPSPReference]}
	default:
		return decodedStatus{kind: statusCancelled, message: "payment feedback error"}
	}
}

// commitStatus applies the decoded status under the per-reference lock and a
// database transaction with the row re-read FOR UPDATE, then emits the done
// event at most once. A duplicate delivery finds the row already terminal,
// skips the write and still reports success.
func (u *notificationUC) commitStatus(ctx context.Context, t *model.Transaction, status decodedStatus) (*model.Transaction, error) {
	lockKey := "notify:" + t.Reference
	token, err := u.locker.TryLock(ctx, lockKey, u.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = u.locker.Unlock(ctx, lockKey, token) }()

	var out *model.Transaction
	becameDone := false
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		fresh, err := u.transactions.FindByID(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		from := fresh.State

		var changed bool
		switch status.kind {
		case statusDone:
			changed = fresh.SetDone(status.acquirerRef, status.paidAt)
			becameDone = changed
		case statusPending:
			changed = fresh.SetPending(status.acquirerRef, status.message)
		case statusCancelled:
			changed = fresh.SetCancelled(status.message)
		}

		if changed {
			if err := u.transactions.Save(ctx, tx, fresh); err != nil {
				return err
			}
			metrics.StateTransitions.WithLabelValues(string(from), string(fresh.State)).Inc()
			u.log.Info().
				Str("reference", fresh.Reference).
				Str("from", string(from)).
				Str("to", string(fresh.State)).
				Msg("transaction state changed")
		} else {
			u.log.Info().
				Str("reference", fresh.Reference).
				Str("state", string(fresh.State)).
				Msg("duplicate notification, state unchanged")
		}
		out = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	if becameDone && u.notifier != nil {
		if err := u.notifier.PaymentDone(ctx, out); err != nil {
			u.log.Error().Err(err).Str("reference", out.Reference).Msg("done event delivery failed")
		}
	}
	return out, nil
}
