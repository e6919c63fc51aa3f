package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

func (r *outboxRepo) Enqueue(ctx context.Context, qx any, t *model.OutboxTask) error {
	const q = `
INSERT INTO outbox_tasks (
  id, kind, payment_id, user_id, subscription_id, status, attempts, next_attempt_at, last_error, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	_, err := execSQL(ctx, r.pool, qx, q, t.ID, t.Kind, t.PaymentID, t.UserID, t.SubscriptionID, t.Status, t.Attempts, t.NextAttemptAt, t.LastError, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// ClaimDue uses FOR UPDATE SKIP LOCKED so a second worker instance would not
// double-process a task mid-flight.
func (r *outboxRepo) ClaimDue(ctx context.Context, qx any, now time.Time, limit int) ([]*model.OutboxTask, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, kind, payment_id, user_id, subscription_id, status, attempts, next_attempt_at, last_error, created_at, updated_at
  FROM outbox_tasks
 WHERE status='pending' AND next_attempt_at <= $1
 ORDER BY next_attempt_at ASC
 LIMIT $2
   FOR UPDATE SKIP LOCKED;`

	rows, err := queryRows(ctx, r.pool, qx, q, now, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.OutboxTask
	for rows.Next() {
		t := &model.OutboxTask{}
		if err := rows.Scan(&t.ID, &t.Kind, &t.PaymentID, &t.UserID, &t.SubscriptionID, &t.Status, &t.Attempts, &t.NextAttemptAt, &t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *outboxRepo) MarkDone(ctx context.Context, qx any, id string) error {
	const q = `UPDATE outbox_tasks SET status='done', updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *outboxRepo) MarkFailed(ctx context.Context, qx any, id string, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error {
	status := model.OutboxStatusPending
	if dead {
		status = model.OutboxStatusDead
	}
	const q = `UPDATE outbox_tasks SET status=$2, attempts=$3, next_attempt_at=$4, last_error=$5, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, status, attempts, nextAttemptAt, lastErr)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
