package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
	"edupay-service/internal/usecase"
)

// PaymentReconciler periodically scans for stale non-terminal payments and
// tries to finalize them against the provider. This covers webhooks that
// never arrived or a process crash mid-confirm. It also cancels orphaned
// pending subscriptions: rows whose payment initiation failed after the
// subscription row was created but before the compensating delete ran.
type PaymentReconciler struct {
	payUC       usecase.PaymentUseCase
	payments    repository.PaymentRepository
	subs        repository.SubscriptionRepository
	interval    time.Duration // how often to scan
	staleAfter  time.Duration // how old a non-terminal payment must be to retry
	orphanGrace time.Duration
	log         *zerolog.Logger
}

func NewPaymentReconciler(
	payUC usecase.PaymentUseCase,
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	interval, staleAfter, orphanGrace time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if orphanGrace <= 0 {
		orphanGrace = 15 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		payUC: payUC, payments: payments, subs: subs,
		interval: interval, staleAfter: staleAfter, orphanGrace: orphanGrace,
		log: &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListNonTerminalOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale payments")
	}
	for _, p := range stale {
		if p.ProviderTxID == nil {
			// Never acknowledged by the provider; nothing to reconcile.
			if _, err := w.payments.UpdateStatusIfNotTerminal(ctx, nil, p.ID, model.PaymentStatusFailed, nil, now(), "timeout"); err != nil {
				w.log.Error().Err(err).Str("payment_id", p.ID).Msg("timeout stale payment")
			}
			continue
		}
		// Empty user id skips the ownership check; the reconciler acts on
		// behalf of the system.
		if _, err := w.payUC.CheckStatus(ctx, "", p.TransactionID); err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile check failed")
		}
	}

	orphanCutoff := time.Now().Add(-w.orphanGrace)
	pending, err := w.subs.ListPendingOlderThan(ctx, nil, orphanCutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending subscriptions")
		return
	}
	for _, s := range pending {
		if s.TransactionID != "" {
			if _, err := w.payments.FindByTransactionID(ctx, nil, s.TransactionID); err == nil {
				// Payment exists; the webhook or a status check will settle it.
				continue
			}
		}
		s.Status = model.SubscriptionStatusCancelled
		s.UpdatedAt = time.Now()
		if err := w.subs.Save(ctx, nil, s); err != nil {
			w.log.Error().Err(err).Str("subscription_id", s.ID).Msg("cancel orphaned subscription")
			continue
		}
		w.log.Info().Str("subscription_id", s.ID).Msg("orphaned pending subscription cancelled")
	}
}

func now() *time.Time {
	t := time.Now()
	return &t
}
