package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"onepay-payment-adapter/internal/domain/ports/repository"
	"onepay-payment-adapter/internal/usecase"
)

// Reconciler periodically scans for stale pending transactions and asks the
// provider for their status via queryDR. This covers callbacks that were
// lost or arrived while the process was down.
type Reconciler struct {
	uc           usecase.NotificationUseCase
	transactions repository.TransactionRepository
	interval     time.Duration
	staleAfter   time.Duration
	log          *zerolog.Logger
}

func NewReconciler(uc usecase.NotificationUseCase, transactions repository.TransactionRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &Reconciler{uc: uc, transactions: transactions, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *Reconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Reconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.transactions.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list pending failed")
		return
	}
	for _, t := range pending {
		if err := w.uc.Reconcile(ctx, t); err != nil {
			w.log.Warn().Err(err).Str("reference", t.Reference).Msg("reconciler: query failed")
			continue
		}
	}
}
