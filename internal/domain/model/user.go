package model

import (
	"time"

	"github.com/google/uuid"

	"edupay-service/internal/domain"
)

// AccessLevel is the derived capability set computed from a user's active
// subscriptions. It is a cache: readers must refresh (expire-sweep) first, or
// accept staleness bounded by the sweep interval.
type AccessLevel struct {
	Courses      bool
	Tests        bool
	UnlimitedAI  bool
	AITokenLimit int64
	AITokensUsed int64
}

// User is the slice of the platform user this service cares about: identity,
// the one-time fee bookkeeping and the derived access cache.
type User struct {
	ID      string
	Email   string
	Name    string
	IsAdmin bool

	// One-time registration fee bookkeeping, set by the webhook processor on
	// the first successful fee payment.
	PaymentCompleted bool
	PaymentAmount    int64
	PaymentDate      *time.Time

	Access AccessLevel

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUser(id, email, name string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{ID: id, Email: email, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// ComputeAccess folds the user's subscriptions into an access level,
// counting only those active at now. Token usage carries over from prev so a
// recompute does not reset the meter.
func ComputeAccess(subs []*Subscription, prev AccessLevel, now time.Time) AccessLevel {
	out := AccessLevel{AITokensUsed: prev.AITokensUsed}
	for _, s := range subs {
		if !s.ActiveNow(now) {
			continue
		}
		plan, err := PlanByType(s.PlanType)
		if err != nil {
			continue
		}
		out.Courses = out.Courses || plan.CourseAccess
		out.Tests = out.Tests || plan.TestAccess
		out.UnlimitedAI = out.UnlimitedAI || plan.UnlimitedAI
		if plan.AITokenLimit > out.AITokenLimit {
			out.AITokenLimit = plan.AITokenLimit
		}
	}
	return out
}
