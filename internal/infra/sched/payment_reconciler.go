package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/repository"
	"saas-subscription-backend/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and asks
// the gateway what actually happened to them. This covers payments whose
// webhook was dropped while no client was polling: the charge cleared at
// the provider but the local row never moved.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to requery
	batchSize  int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, batchSize int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &PaymentReconciler{uc: uc, payments: payments, interval: interval, staleAfter: staleAfter, batchSize: batchSize, log: logger}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
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

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list pending failed")
		return
	}
	for _, p := range pending {
		refreshed, err := w.uc.Refresh(ctx, p.ID)
		if err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("payment-reconciler: refresh failed")
			continue
		}
		if refreshed.Status != model.PaymentStatusPending {
			w.log.Info().Str("payment_id", p.ID).Str("status", string(refreshed.Status)).
				Msg("payment-reconciler: reconciled stale payment")
		}
	}
}
