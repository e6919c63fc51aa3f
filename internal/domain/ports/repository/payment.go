package repository

import (
	"context"
	"time"

	"edupay-service/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, qx any, p *model.Payment) error
	FindByID(ctx context.Context, qx any, id string) (*model.Payment, error)
	FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.Payment, error)
	// FindNonTerminalByUserPurpose returns the newest pending/processing
	// payment for (user, purpose), or ErrNotFound.
	FindNonTerminalByUserPurpose(ctx context.Context, qx any, userID string, purpose model.PaymentPurpose) (*model.Payment, error)
	// UpdateStatusIfNotTerminal applies a status change only when the stored
	// status allows the transition (first terminal write wins). Returns
	// whether a row was updated.
	UpdateStatusIfNotTerminal(ctx context.Context, qx any, id string, status model.PaymentStatus, providerTxID *string, completedAt *time.Time, failureReason string) (bool, error)
	// RecordWebhookAttempt increments the attempt counter and overwrites the
	// last-seen payload regardless of processing outcome.
	RecordWebhookAttempt(ctx context.Context, qx any, id string, payload []byte) error
	ListNonTerminalOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Payment, error)
	SumByPeriod(ctx context.Context, qx any, period string) (int64, error)
}
