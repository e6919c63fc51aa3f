// File: internal/usecase/outbox_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
)

// OutboxProcessor executes persisted post-webhook side effects. Every handler
// is idempotent so at-least-once delivery is safe.
type OutboxProcessor struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	users    repository.UserRepository
	log      *zerolog.Logger
}

func NewOutboxProcessor(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	logger *zerolog.Logger,
) *OutboxProcessor {
	l := logger.With().Str("component", "OutboxProcessor").Logger()
	return &OutboxProcessor{payments: payments, subs: subs, users: users, log: &l}
}

func (p *OutboxProcessor) Process(ctx context.Context, t *model.OutboxTask) error {
	switch t.Kind {
	case model.TaskMarkUserPaid:
		return p.markUserPaid(ctx, t)
	case model.TaskActivateSubscription:
		return p.activateSubscription(ctx, t)
	case model.TaskRecomputeAccess:
		return p.recomputeAccess(ctx, t)
	}
	return fmt.Errorf("unknown outbox task kind %q", t.Kind)
}

func (p *OutboxProcessor) markUserPaid(ctx context.Context, t *model.OutboxTask) error {
	pay, err := p.payments.FindByID(ctx, nil, t.PaymentID)
	if err != nil {
		return err
	}
	at := time.Now()
	if pay.CompletedAt != nil {
		at = *pay.CompletedAt
	}
	changed, err := p.users.MarkPaymentCompleted(ctx, nil, t.UserID, pay.Amount, at)
	if err != nil {
		return err
	}
	if changed {
		p.log.Info().Str("user_id", t.UserID).Msg("user fee payment recorded")
	}
	return nil
}

func (p *OutboxProcessor) activateSubscription(ctx context.Context, t *model.OutboxTask) error {
	if t.SubscriptionID == nil {
		return nil
	}
	sub, err := p.subs.FindByID(ctx, nil, *t.SubscriptionID)
	if err != nil {
		return err
	}
	// Only pending rows are promoted; a replayed task is a no-op.
	if sub.Status != model.SubscriptionStatusPending {
		return nil
	}
	sub.Status = model.SubscriptionStatusActive
	sub.UpdatedAt = time.Now()
	if err := p.subs.Save(ctx, nil, sub); err != nil {
		return err
	}
	p.log.Info().Str("subscription_id", sub.ID).Str("plan", string(sub.PlanType)).Msg("subscription activated")
	return nil
}

func (p *OutboxProcessor) recomputeAccess(ctx context.Context, t *model.OutboxTask) error {
	user, err := p.users.FindByID(ctx, nil, t.UserID)
	if err != nil {
		return err
	}
	subs, err := p.subs.ListByUser(ctx, nil, t.UserID)
	if err != nil {
		return err
	}
	access := model.ComputeAccess(subs, user.Access, time.Now())
	return p.users.UpdateAccess(ctx, nil, t.UserID, access)
}
