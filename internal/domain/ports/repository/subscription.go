package repository

import (
	"context"
	"time"

	"edupay-service/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, qx any, s *model.Subscription) error
	FindByID(ctx context.Context, qx any, id string) (*model.Subscription, error)
	FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, qx any, userID string) ([]*model.Subscription, error)
	// FindActiveByUserAndPlan returns the user's active, unexpired
	// subscription of the given plan type, or ErrNotFound.
	FindActiveByUserAndPlan(ctx context.Context, qx any, userID string, plan model.PlanType) (*model.Subscription, error)
	// ExpireDue flips every active subscription with end_at <= now to
	// expired; returns the number of rows changed.
	ExpireDue(ctx context.Context, qx any, now time.Time) (int64, error)
	// ListPendingOlderThan returns pending subscriptions created before the
	// cutoff, for the orphan sweep.
	ListPendingOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Subscription, error)
	Delete(ctx context.Context, qx any, id string) error
	ListAll(ctx context.Context, qx any, limit, offset int) ([]*model.Subscription, error)
	CountByStatus(ctx context.Context, qx any) (map[model.SubscriptionStatus]int, error)
}
