package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"edupay-service/internal/domain/ports/repository"
	"edupay-service/internal/infra/metrics"
	"edupay-service/internal/usecase"
)

// ExpiryWorker periodically expires subscriptions past their end date and
// refreshes the per-status subscription gauge.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, subs repository.SubscriptionRepository, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, subUC: subUC, subs: subs, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.subUC.ExpireDue(ctx); err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
				continue
			}
			counts, err := w.subs.CountByStatus(ctx, nil)
			if err != nil {
				w.log.Error().Err(err).Msg("count subscriptions")
				continue
			}
			metrics.SetSubscriptionsTotal(counts)
		}
	}
}
