//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"onepay-payment-adapter/internal/domain"
	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/adapter"
)

const hexSecret = "6D0870CDE5F24F34F3915FB0045120DB6D0870CDE5F24F34F3915FB0045120DB"

type notificationUCTestDeps struct {
	transactions *memTxRepo
	acquirers    *memAcquirerRepo
	gateway      *mockGateway
	tm           *mockTxManager
	locker       *mockLocker
	notifier     *mockNotifier
}

func newNotificationUCDeps() *notificationUCTestDeps {
	return &notificationUCTestDeps{
		transactions: newMemTxRepo(),
		acquirers:    newMemAcquirerRepo(),
		gateway:      &mockGateway{},
		tm:           &mockTxManager{},
		locker:       &mockLocker{},
		notifier:     &mockNotifier{},
	}
}

func (d *notificationUCTestDeps) build() NotificationUseCase {
	return NewNotificationUseCase(d.transactions, d.acquirers, d.gateway, d.tm, d.locker, d.notifier, time.Second, newTestLogger())
}

func (d *notificationUCTestDeps) seedAcquirer(scheme model.SignatureScheme) *model.AcquirerConfig {
	cfg := &model.AcquirerConfig{
		ID:              "acq-1",
		MerchantAccount: "TESTONEPAY",
		AccessCode:      "6BEB2546",
		SecretHash:      hexSecret,
		Scheme:          scheme,
	}
	d.acquirers.put(cfg)
	return cfg
}

func (d *notificationUCTestDeps) seedTransaction(state model.TransactionState) *model.Transaction {
	tx, err := model.NewTransaction("tx-1", "ref-2024-001", 150000, "VND", "acq-1")
	if err != nil {
		panic(err)
	}
	tx.State = state
	d.transactions.mustSeed(tx)
	return tx
}

func authorisedFields(cfg *model.AcquirerConfig) adapter.FieldSet {
	return adapter.FieldSet{
		"vpc_MerchTxnRef":  "ref-2024-001",
		"authResult":       "AUTHORISED",
		"pspReference":     "8028269",
		"vpc_AccessCode":   cfg.AccessCode,
		"vpc_Merchant":     cfg.MerchantAccount,
		"vpc_Amount":       "150000",
		"vpc_CurrencyCode": "VND",
		"vpc_SecureHash":   "sig",
	}
}

func TestNotificationUseCase_HandleNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject a payload without a merchant reference", func(t *testing.T) {
		deps := newNotificationUCDeps()
		uc := deps.build()

		_, _, err := uc.HandleNotification(ctx, adapter.FieldSet{"authResult": "AUTHORISED"})

		if !errors.Is(err, domain.ErrUnknownTransaction) {
			t.Errorf("error = %v, want ErrUnknownTransaction", err)
		}
	})

	t.Run("should reject an unknown reference", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		uc := deps.build()

		_, _, err := uc.HandleNotification(ctx, authorisedFields(cfg))

		if !errors.Is(err, domain.ErrUnknownTransaction) {
			t.Errorf("error = %v, want ErrUnknownTransaction", err)
		}
	})

	t.Run("should refuse an ambiguous reference without touching either match", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		first := deps.seedTransaction(model.TransactionStateDraft)
		second := *first
		second.ID = "tx-2"
		deps.transactions.mustSeed(&second)
		uc := deps.build()

		_, _, err := uc.HandleNotification(ctx, authorisedFields(cfg))

		if !errors.Is(err, domain.ErrUnknownTransaction) {
			t.Fatalf("error = %v, want ErrUnknownTransaction", err)
		}
		for _, id := range []string{"tx-1", "tx-2"} {
			got, _ := deps.transactions.FindByID(ctx, nil, id)
			if got.State != model.TransactionStateDraft {
				t.Errorf("transaction %s state = %q, must stay draft", id, got.State)
			}
		}
	})

	t.Run("should reject a bad signature and leave the transaction untouched", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		deps.gateway.VerifyNotificationFunc = func(fields adapter.FieldSet, cfg *model.AcquirerConfig) error {
			return domain.ErrSignatureMismatch
		}
		uc := deps.build()

		_, _, err := uc.HandleNotification(ctx, authorisedFields(cfg))

		if !errors.Is(err, domain.ErrSignatureMismatch) {
			t.Fatalf("error = %v, want ErrSignatureMismatch", err)
		}
		got, _ := deps.transactions.FindByID(ctx, nil, "tx-1")
		if got.State != model.TransactionStateDraft {
			t.Errorf("state = %q, must stay draft on rejection", got.State)
		}
		if deps.notifier.count() != 0 {
			t.Error("notifier fired on a rejected notification")
		}
	})

	t.Run("should move an authorised payment to done and emit one event", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		out, mismatches, err := uc.HandleNotification(ctx, authorisedFields(cfg))

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStateDone {
			t.Errorf("state = %q, want done", out.State)
		}
		if out.AcquirerRef != "8028269" {
			t.Errorf("acquirerRef = %q, want the pspReference", out.AcquirerRef)
		}
		if len(mismatches) != 0 {
			t.Errorf("mismatches = %v, want none for a consistent payload", mismatches)
		}
		if deps.notifier.count() != 1 {
			t.Fatalf("notifier fired %d times, want 1", deps.notifier.count())
		}
	})

	t.Run("should absorb a duplicate delivery without a second event", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		fields := authorisedFields(cfg)
		if _, _, err := uc.HandleNotification(ctx, fields); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		out, _, err := uc.HandleNotification(ctx, fields)
		if err != nil {
			t.Fatalf("duplicate delivery must still succeed, got %v", err)
		}
		if out.State != model.TransactionStateDone {
			t.Errorf("state = %q after duplicate, want done", out.State)
		}
		if deps.notifier.count() != 1 {
			t.Errorf("notifier fired %d times across duplicates, want exactly 1", deps.notifier.count())
		}
	})

	t.Run("should cancel on an unrecognised auth result with a diagnostic", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		fields := authorisedFields(cfg)
		fields["authResult"] = "REFUSED"
		out, _, err := uc.HandleNotification(ctx, fields)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStateCancelled {
			t.Errorf("state = %q, want cancelled", out.State)
		}
		if out.StateMessage != "payment feedback error" {
			t.Errorf("stateMessage = %q", out.StateMessage)
		}
		if deps.notifier.count() != 0 {
			t.Error("notifier fired on a cancelled payment")
		}
	})

	t.Run("should set pending on a PENDING auth result", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		fields := authorisedFields(cfg)
		fields["authResult"] = "PENDING"
		out, _, err := uc.HandleNotification(ctx, fields)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStatePending {
			t.Errorf("state = %q, want pending", out.State)
		}
	})

	t.Run("should collect mismatches without aborting", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		fields := authorisedFields(cfg)
		fields["vpc_AccessCode"] = "WRONG"
		fields["vpc_Amount"] = "999"
		out, mismatches, err := uc.HandleNotification(ctx, fields)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStateDone {
			t.Errorf("state = %q, mismatches must not block the transition", out.State)
		}
		byField := map[string]bool{}
		for _, m := range mismatches {
			byField[m.Field] = true
		}
		if !byField["vpc_AccessCode"] || !byField["vpc_Amount"] {
			t.Errorf("mismatches = %v, want vpc_AccessCode and vpc_Amount flagged", mismatches)
		}
	})

	t.Run("should flag a missing auth result as a mismatch and cancel", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		fields := authorisedFields(cfg)
		delete(fields, "authResult")
		out, mismatches, err := uc.HandleNotification(ctx, fields)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStateCancelled {
			t.Errorf("state = %q, want cancelled", out.State)
		}
		found := false
		for _, m := range mismatches {
			if m.Field == "authResult" {
				found = true
			}
		}
		if !found {
			t.Errorf("mismatches = %v, want authResult flagged", mismatches)
		}
	})

	t.Run("should surface an unavailable lock", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		deps.locker.err = domain.ErrLockUnavailable
		uc := deps.build()

		_, _, err := uc.HandleNotification(ctx, authorisedFields(cfg))

		if !errors.Is(err, domain.ErrLockUnavailable) {
			t.Errorf("error = %v, want ErrLockUnavailable", err)
		}
	})

	t.Run("should release the lock after committing", func(t *testing.T) {
		deps := newNotificationUCDeps()
		cfg := deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		if _, _, err := uc.HandleNotification(ctx, authorisedFields(cfg)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if deps.locker.locked != 1 || deps.locker.unlocked != 1 {
			t.Errorf("lock traffic = %d/%d, want 1/1", deps.locker.locked, deps.locker.unlocked)
		}
	})
}

func ccFields(responseCode string) adapter.FieldSet {
	return adapter.FieldSet{
		"vpc_MerchTxnRef":     "ref-2024-001",
		"vpc_TxnResponseCode": responseCode,
		"vpc_Merchant":        "TESTONEPAY",
		"vpc_Amount":          "15000000",
		"vpc_SecureHash":      "SIG",
	}
}

func TestNotificationUseCase_HandleNotification_CC(t *testing.T) {
	ctx := context.Background()

	t.Run("should finalize a confirmed cc payment", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		out, _, err := uc.HandleNotification(ctx, ccFields("0"))

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStateDone {
			t.Errorf("state = %q, want done", out.State)
		}
		if deps.notifier.count() != 1 {
			t.Errorf("notifier fired %d times, want 1", deps.notifier.count())
		}
	})

	t.Run("should cancel when the provider declines the status cross-check", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		deps.seedTransaction(model.TransactionStateDraft)
		deps.gateway.QueryStatusFunc = func(ctx context.Context, tr *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
			return adapter.QueryResult{Success: false}, nil
		}
		uc := deps.build()

		out, _, err := uc.HandleNotification(ctx, ccFields("0"))

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStateCancelled {
			t.Errorf("state = %q, want cancelled", out.State)
		}
		if out.StateMessage != "provider declined feedback validation" {
			t.Errorf("stateMessage = %q", out.StateMessage)
		}
		if deps.notifier.count() != 0 {
			t.Error("notifier fired for a declined payment")
		}
	})

	t.Run("should reject when the status query itself fails", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		deps.seedTransaction(model.TransactionStateDraft)
		queryErr := errors.New("provider unreachable")
		deps.gateway.QueryStatusFunc = func(ctx context.Context, tr *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
			return adapter.QueryResult{}, queryErr
		}
		uc := deps.build()

		_, _, err := uc.HandleNotification(ctx, ccFields("0"))

		if !errors.Is(err, queryErr) {
			t.Errorf("error = %v, want the query failure", err)
		}
		got, _ := deps.transactions.FindByID(ctx, nil, "tx-1")
		if got.State != model.TransactionStateDraft {
			t.Errorf("state = %q, must stay draft when the cross-check is inconclusive", got.State)
		}
	})

	t.Run("should set pending on a non-zero response code", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		fields := ccFields("99")
		fields["pending_reason"] = "awaiting issuer"
		out, _, err := uc.HandleNotification(ctx, fields)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStatePending {
			t.Errorf("state = %q, want pending", out.State)
		}
		if out.StateMessage != "awaiting issuer" {
			t.Errorf("stateMessage = %q", out.StateMessage)
		}
	})

	t.Run("should cancel on a malformed response code", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		deps.seedTransaction(model.TransactionStateDraft)
		uc := deps.build()

		out, _, err := uc.HandleNotification(ctx, ccFields("not-a-number"))

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.State != model.TransactionStateCancelled {
			t.Errorf("state = %q, want cancelled", out.State)
		}
	})
}

func TestNotificationUseCase_HandleAsync(t *testing.T) {
	ctx := context.Background()

	t.Run("should ignore non-authorisation events and unknown references", func(t *testing.T) {
		deps := newNotificationUCDeps()
		uc := deps.build()

		uc.HandleAsync(ctx, adapter.FieldSet{"eventCode": "REPORT_AVAILABLE", "success": "true"})
		uc.HandleAsync(ctx, adapter.FieldSet{"eventCode": "AUTHORISATION", "success": "true"})
		uc.HandleAsync(ctx, adapter.FieldSet{"eventCode": "AUTHORISATION", "vpc_MerchTxnRef": "nope", "success": "true"})
	})

	t.Run("should not mutate state on a consistency check", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeSHA256)
		deps.seedTransaction(model.TransactionStateDone)
		uc := deps.build()

		uc.HandleAsync(ctx, adapter.FieldSet{
			"eventCode":       "AUTHORISATION",
			"vpc_MerchTxnRef": "ref-2024-001",
			"success":         "false", // inconsistent with done; logged only
		})

		got, _ := deps.transactions.FindByID(ctx, nil, "tx-1")
		if got.State != model.TransactionStateDone {
			t.Errorf("state = %q, async pings must never mutate", got.State)
		}
	})
}

func TestNotificationUseCase_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("should finalize a settled pending transaction", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		tx := deps.seedTransaction(model.TransactionStatePending)
		deps.gateway.QueryStatusFunc = func(ctx context.Context, tr *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
			return adapter.QueryResult{
				Success: true,
				Fields: adapter.FieldSet{
					"vpc_MerchTxnRef":        "provider-ref-7",
					"vpc_AuthenticationDate": "2024-05-01 10:00:00",
				},
			}, nil
		}
		uc := deps.build()

		if err := uc.Reconcile(ctx, tx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := deps.transactions.FindByID(ctx, nil, "tx-1")
		if got.State != model.TransactionStateDone {
			t.Errorf("state = %q, want done", got.State)
		}
		if got.PaidAt == nil || !got.PaidAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
			t.Error("paidAt not taken from the provider's authentication date")
		}
		if deps.notifier.count() != 1 {
			t.Errorf("notifier fired %d times, want 1", deps.notifier.count())
		}
	})

	t.Run("should leave an unsettled transaction pending", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		tx := deps.seedTransaction(model.TransactionStatePending)
		deps.gateway.QueryStatusFunc = func(ctx context.Context, tr *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
			return adapter.QueryResult{Success: false}, nil
		}
		uc := deps.build()

		if err := uc.Reconcile(ctx, tx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := deps.transactions.FindByID(ctx, nil, "tx-1")
		if got.State != model.TransactionStatePending {
			t.Errorf("state = %q, want pending", got.State)
		}
	})

	t.Run("should propagate a query failure for the next sweep", func(t *testing.T) {
		deps := newNotificationUCDeps()
		deps.seedAcquirer(model.SchemeCC)
		tx := deps.seedTransaction(model.TransactionStatePending)
		queryErr := errors.New("timeout")
		deps.gateway.QueryStatusFunc = func(ctx context.Context, tr *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
			return adapter.QueryResult{}, queryErr
		}
		uc := deps.build()

		if err := uc.Reconcile(ctx, tx); !errors.Is(err, queryErr) {
			t.Errorf("error = %v, want the query failure", err)
		}
	})
}
