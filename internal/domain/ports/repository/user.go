package repository

import (
	"context"
	"time"

	"edupay-service/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, qx any, u *model.User) error
	FindByID(ctx context.Context, qx any, id string) (*model.User, error)
	// MarkPaymentCompleted sets the one-time fee flag only when it is not
	// already set. Returns whether the row changed.
	MarkPaymentCompleted(ctx context.Context, qx any, id string, amount int64, at time.Time) (bool, error)
	UpdateAccess(ctx context.Context, qx any, id string, access model.AccessLevel) error
	// AddAITokensUsed bumps the usage meter atomically.
	AddAITokensUsed(ctx context.Context, qx any, id string, tokens int64) error
}
