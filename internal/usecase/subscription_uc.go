// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
	"edupay-service/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	Plans() []model.Plan
	// Subscribe creates a pending subscription and initiates its payment.
	// The subscription is deleted again if initiation fails.
	Subscribe(ctx context.Context, userID string, plan model.PlanType, courseID *string, phone string, amount int64) (*model.Subscription, *model.Payment, error)
	MySubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error)
	// CheckAccess refreshes expiry state, recomputes the user's access level
	// from active subscriptions, persists it, and answers for one service.
	CheckAccess(ctx context.Context, userID, service string, courseID *string) (bool, error)
	Cancel(ctx context.Context, userID, subscriptionID string, isAdmin bool) (*model.Subscription, error)
	// ExpireDue flips every active subscription past its end date to expired.
	ExpireDue(ctx context.Context) (int64, error)
	ListAll(ctx context.Context, limit, offset int) ([]*model.Subscription, error)
}

type subscriptionUC struct {
	subs  repository.SubscriptionRepository
	users repository.UserRepository
	payUC PaymentUseCase
	log   *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	payUC PaymentUseCase,
	logger *zerolog.Logger,
) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, users: users, payUC: payUC, log: &l}
}

func (uc *subscriptionUC) Plans() []model.Plan { return model.Catalog() }

func (uc *subscriptionUC) Subscribe(ctx context.Context, userID string, planType model.PlanType, courseID *string, phone string, amount int64) (*model.Subscription, *model.Payment, error) {
	plan, err := model.PlanByType(planType)
	if err != nil {
		return nil, nil, err
	}
	if amount != plan.Price {
		return nil, nil, domain.ErrAmountMismatch
	}

	// One active subscription per plan type. Different plan types may
	// coexist; that is deliberate.
	if existing, err := uc.subs.FindActiveByUserAndPlan(ctx, nil, userID, planType); err == nil && existing.ActiveNow(time.Now()) {
		return nil, nil, domain.ErrDuplicateActiveSubscription
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	// Subscription first, then payment: the payment row links back via
	// SubscriptionID, and the transaction reference is copied onto the
	// subscription once the initiator has minted it.
	sub, err := model.NewSubscription(userID, plan, courseID, "")
	if err != nil {
		return nil, nil, err
	}
	if err := uc.subs.Save(ctx, nil, sub); err != nil {
		return nil, nil, err
	}

	pay, err := uc.payUC.Initiate(ctx, InitiateRequest{
		UserID:         userID,
		Phone:          phone,
		Purpose:        model.PurposeSubscription,
		Description:    string(planType) + " subscription",
		Amount:         plan.Price,
		SubscriptionID: &sub.ID,
	})
	if err != nil {
		// Compensating delete; the orphan sweep catches the crash window
		// between these two writes.
		if derr := uc.subs.Delete(ctx, nil, sub.ID); derr != nil {
			uc.log.Error().Err(derr).Str("subscription_id", sub.ID).Msg("compensating delete failed")
		}
		return nil, nil, err
	}

	sub.TransactionID = pay.TransactionID
	sub.UpdatedAt = time.Now()
	if err := uc.subs.Save(ctx, nil, sub); err != nil {
		return nil, nil, err
	}
	uc.log.Info().
		Str("subscription_id", sub.ID).
		Str("plan", string(planType)).
		Str("transaction_id", pay.TransactionID).
		Msg("subscription created pending payment")
	return sub, pay, nil
}

func (uc *subscriptionUC) MySubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return uc.subs.ListByUser(ctx, nil, userID)
}

func (uc *subscriptionUC) CheckAccess(ctx context.Context, userID, service string, courseID *string) (bool, error) {
	// Mandatory refresh: the access level is a cache over swept subscriptions.
	if _, err := uc.ExpireDue(ctx); err != nil {
		return false, err
	}
	user, err := uc.users.FindByID(ctx, nil, userID)
	if err != nil {
		return false, err
	}
	subs, err := uc.subs.ListByUser(ctx, nil, userID)
	if err != nil {
		return false, err
	}
	now := time.Now()
	access := model.ComputeAccess(subs, user.Access, now)
	if err := uc.users.UpdateAccess(ctx, nil, userID, access); err != nil {
		return false, err
	}

	switch service {
	case "courses":
		if courseID != nil {
			for _, s := range subs {
				if s.ActiveNow(now) && s.PlanType == model.PlanPerCourse && s.CourseID != nil && *s.CourseID == *courseID {
					return true, nil
				}
			}
			// A full-catalog plan covers every course.
			return accessIgnoringPerCourse(subs, now), nil
		}
		return access.Courses, nil
	case "tests":
		return access.Tests, nil
	case "ai":
		return access.UnlimitedAI || access.AITokenLimit > access.AITokensUsed, nil
	}
	return false, domain.ErrInvalidArgument
}

func accessIgnoringPerCourse(subs []*model.Subscription, now time.Time) bool {
	for _, s := range subs {
		if !s.ActiveNow(now) || s.PlanType == model.PlanPerCourse {
			continue
		}
		if plan, err := model.PlanByType(s.PlanType); err == nil && plan.CourseAccess {
			return true
		}
	}
	return false
}

func (uc *subscriptionUC) Cancel(ctx context.Context, userID, subscriptionID string, isAdmin bool) (*model.Subscription, error) {
	sub, err := uc.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && sub.UserID != userID {
		return nil, domain.ErrNotFound
	}
	switch sub.Status {
	case model.SubscriptionStatusPending, model.SubscriptionStatusActive:
		sub.Status = model.SubscriptionStatusCancelled
		sub.UpdatedAt = time.Now()
		if err := uc.subs.Save(ctx, nil, sub); err != nil {
			return nil, err
		}
		return sub, nil
	}
	return sub, nil
}

func (uc *subscriptionUC) ExpireDue(ctx context.Context) (int64, error) {
	n, err := uc.subs.ExpireDue(ctx, nil, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(int(n))
		uc.log.Info().Int64("count", n).Msg("subscriptions expired")
	}
	return n, nil
}

func (uc *subscriptionUC) ListAll(ctx context.Context, limit, offset int) ([]*model.Subscription, error) {
	return uc.subs.ListAll(ctx, nil, limit, offset)
}
