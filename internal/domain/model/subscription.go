package model

import (
	"time"

	"github.com/google/uuid"

	"edupay-service/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription represents one purchased access window.
type Subscription struct {
	ID       string // UUID
	UserID   string // UUID
	PlanType PlanType
	CourseID *string // required for the legacy per_course plan only
	Amount   int64
	Currency string
	Status   SubscriptionStatus

	// TransactionID links to the Payment that funds this subscription.
	TransactionID string

	// EndAt is computed once at creation from the plan duration and never
	// user-editable.
	StartAt time.Time
	EndAt   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription builds a pending subscription with its end date derived
// from the plan duration. The transaction reference is linked after payment
// initiation mints it.
func NewSubscription(userID string, plan *Plan, courseID *string, transactionID string) (*Subscription, error) {
	if userID == "" || plan == nil {
		return nil, domain.ErrInvalidArgument
	}
	if plan.Type == PlanPerCourse && (courseID == nil || *courseID == "") {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:            uuid.NewString(),
		UserID:        userID,
		PlanType:      plan.Type,
		CourseID:      courseID,
		Amount:        plan.Price,
		Currency:      "XAF",
		Status:        SubscriptionStatusPending,
		TransactionID: transactionID,
		StartAt:       now,
		EndAt:         now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ActiveNow evaluates the activity conjunction at read time: the stored
// status says active AND the end date has not passed.
func (s *Subscription) ActiveNow(now time.Time) bool {
	return s != nil && s.Status == SubscriptionStatusActive && now.Before(s.EndAt)
}
