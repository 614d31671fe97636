//go:build !integration

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"onepay-payment-adapter/internal/domain"
	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/domain/ports/adapter"
	"onepay-payment-adapter/internal/domain/ports/repository"
)

// memTxRepo is a small in-memory implementation used by unit tests.
type memTxRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Transaction // by ID

	// SaveFunc lets a test intercept or fail saves.
	SaveFunc func(ctx context.Context, qx any, t *model.Transaction) error
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{store: make(map[string]*model.Transaction)}
}

func (m *memTxRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, qx, t); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *memTxRepo) FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTxRepo) FindByReference(ctx context.Context, qx any, reference string) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.Reference == reference {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTxRepo) ListPendingOlderThan(ctx context.Context, qx any, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.State == model.TransactionStatePending && t.UpdatedAt.Before(cutoff) {
			cp := *t
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// mustSeed stores a transaction directly, bypassing SaveFunc.
func (m *memTxRepo) mustSeed(t *model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
}

type memAcquirerRepo struct {
	mu    sync.RWMutex
	store map[string]*model.AcquirerConfig
}

func newMemAcquirerRepo() *memAcquirerRepo {
	return &memAcquirerRepo{store: make(map[string]*model.AcquirerConfig)}
}

func (m *memAcquirerRepo) FindByID(ctx context.Context, qx any, id string) (*model.AcquirerConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memAcquirerRepo) List(ctx context.Context, qx any) ([]*model.AcquirerConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.AcquirerConfig
	for _, c := range m.store {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAcquirerRepo) put(c *model.AcquirerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.ID] = &cp
}

// mockGateway lets tests script the provider port per call.
type mockGateway struct {
	BuildRequestFunc       func(t *model.Transaction, cfg *model.AcquirerConfig, returnURL string) (adapter.FieldSet, error)
	VerifyNotificationFunc func(fields adapter.FieldSet, cfg *model.AcquirerConfig) error
	QueryStatusFunc        func(ctx context.Context, t *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error)
}

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) BuildRequest(t *model.Transaction, cfg *model.AcquirerConfig, returnURL string) (adapter.FieldSet, error) {
	if m.BuildRequestFunc != nil {
		return m.BuildRequestFunc(t, cfg, returnURL)
	}
	return adapter.FieldSet{"vpc_MerchTxnRef": t.Reference}, nil
}

func (m *mockGateway) VerifyNotification(fields adapter.FieldSet, cfg *model.AcquirerConfig) error {
	if m.VerifyNotificationFunc != nil {
		return m.VerifyNotificationFunc(fields, cfg)
	}
	return nil
}

func (m *mockGateway) QueryStatus(ctx context.Context, t *model.Transaction, cfg *model.AcquirerConfig) (adapter.QueryResult, error) {
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, t, cfg)
	}
	return adapter.QueryResult{Success: true}, nil
}

// mockLocker hands out tokens and records lock traffic.
type mockLocker struct {
	mu       sync.Mutex
	err      error // returned from TryLock when set
	locked   int
	unlocked int
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.locked++
	return uuid.NewString(), nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocked++
	return nil
}

// mockNotifier records every done event it receives.
type mockNotifier struct {
	mu    sync.Mutex
	err   error
	calls []*model.Transaction
}

func (m *mockNotifier) PaymentDone(ctx context.Context, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.calls = append(m.calls, &cp)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockTxManager runs the function without a real database transaction.
type mockTxManager struct {
	err error // returned instead of running fn when set
}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx, nil)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
