package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
	"edupay-service/internal/infra/metrics"
)

const outboxMaxAttempts = 8

// TaskProcessor executes a single claimed outbox task.
type TaskProcessor interface {
	Process(ctx context.Context, t *model.OutboxTask) error
}

// OutboxWorker drains the side-effect outbox: subscription activation, user
// fee flags and access recomputation queued by the webhook processor.
// Failures back off exponentially and deadletter after outboxMaxAttempts.
type OutboxWorker struct {
	interval  time.Duration
	outbox    repository.OutboxRepository
	tm        repository.TransactionManager
	processor TaskProcessor
	log       *zerolog.Logger
}

func NewOutboxWorker(interval time.Duration, outbox repository.OutboxRepository, tm repository.TransactionManager, processor TaskProcessor, logger *zerolog.Logger) *OutboxWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	l := logger.With().Str("component", "OutboxWorker").Logger()
	return &OutboxWorker{interval: interval, outbox: outbox, tm: tm, processor: processor, log: &l}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting outbox worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping outbox worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick claims and settles a batch inside a single transaction so the
// SKIP LOCKED row locks taken by ClaimDue hold until the marks commit;
// concurrent workers then never process the same task twice. Handlers
// themselves run with a nil qx: they are idempotent, so a crash between
// handler and commit only costs a redundant replay.
func (w *OutboxWorker) tick(ctx context.Context) {
	err := w.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		tasks, err := w.outbox.ClaimDue(ctx, tx, time.Now(), 50)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if perr := w.processor.Process(ctx, t); perr != nil {
				attempts := t.Attempts + 1
				dead := attempts >= outboxMaxAttempts
				next := time.Now().Add(backoff(attempts))
				if merr := w.outbox.MarkFailed(ctx, tx, t.ID, attempts, next, perr.Error(), dead); merr != nil {
					w.log.Error().Err(merr).Str("task_id", t.ID).Msg("mark task failed")
				}
				if dead {
					metrics.IncOutboxTask("dead")
					w.log.Error().Err(perr).Str("task_id", t.ID).Str("kind", string(t.Kind)).Msg("outbox task deadlettered")
				} else {
					metrics.IncOutboxTask("retry")
					w.log.Warn().Err(perr).Str("task_id", t.ID).Int("attempts", attempts).Msg("outbox task retry scheduled")
				}
				continue
			}
			if merr := w.outbox.MarkDone(ctx, tx, t.ID); merr != nil {
				w.log.Error().Err(merr).Str("task_id", t.ID).Msg("mark task done")
				continue
			}
			metrics.IncOutboxTask("done")
		}
		return nil
	})
	if err != nil {
		w.log.Error().Err(err).Msg("drain outbox batch")
	}
}

func backoff(attempts int) time.Duration {
	d := time.Second << uint(attempts)
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
