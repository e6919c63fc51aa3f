package model

import (
	"time"

	"github.com/google/uuid"
)

type OutboxTaskKind string

const (
	TaskActivateSubscription OutboxTaskKind = "activate_subscription"
	TaskMarkUserPaid         OutboxTaskKind = "mark_user_paid"
	TaskRecomputeAccess      OutboxTaskKind = "recompute_access"
)

type OutboxTaskStatus string

const (
	OutboxStatusPending OutboxTaskStatus = "pending"
	OutboxStatusDone    OutboxTaskStatus = "done"
	OutboxStatusDead    OutboxTaskStatus = "dead"
)

// OutboxTask is a persisted post-webhook side effect. Tasks are written in
// the same transaction as the payment status change and processed
// asynchronously with retry, so activation is at-least-once instead of
// fire-and-forget.
type OutboxTask struct {
	ID             string
	Kind           OutboxTaskKind
	PaymentID      string
	UserID         string
	SubscriptionID *string
	Status         OutboxTaskStatus
	Attempts       int
	NextAttemptAt  time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewOutboxTask(kind OutboxTaskKind, paymentID, userID string, subscriptionID *string) *OutboxTask {
	now := time.Now()
	return &OutboxTask{
		ID:             uuid.NewString(),
		Kind:           kind,
		PaymentID:      paymentID,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Status:         OutboxStatusPending,
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
