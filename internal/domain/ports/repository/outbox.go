package repository

import (
	"context"
	"time"

	"edupay-service/internal/domain/model"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, qx any, t *model.OutboxTask) error
	// ClaimDue returns pending tasks whose next attempt is due, oldest first.
	ClaimDue(ctx context.Context, qx any, now time.Time, limit int) ([]*model.OutboxTask, error)
	MarkDone(ctx context.Context, qx any, id string) error
	// MarkFailed records a failed attempt and either reschedules or deadletters.
	MarkFailed(ctx context.Context, qx any, id string, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error
}
