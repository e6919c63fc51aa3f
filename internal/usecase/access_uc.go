// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// AccessUseCase meters AI usage against the active subscriptions' token
// allotment. The chat completion itself lives outside this service; callers
// report the text they are about to send.
type AccessUseCase interface {
	// RecordAIUsage counts the prompt's tokens, checks them against the
	// user's quota and bumps the meter. Returns the token count.
	RecordAIUsage(ctx context.Context, userID, prompt string) (int, error)
}

type accessUC struct {
	users repository.UserRepository
	subs  repository.SubscriptionRepository
	enc   *tiktoken.Tiktoken
	log   *zerolog.Logger
}

func NewAccessUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) (*accessUC, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "AccessUC").Logger()
	return &accessUC{users: users, subs: subs, enc: enc, log: &l}, nil
}

func (u *accessUC) RecordAIUsage(ctx context.Context, userID, prompt string) (int, error) {
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	subs, err := u.subs.ListByUser(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	access := model.ComputeAccess(subs, user.Access, time.Now())

	tokens := len(u.enc.Encode(prompt, nil, nil))
	if access.UnlimitedAI {
		if err := u.users.AddAITokensUsed(ctx, nil, userID, int64(tokens)); err != nil {
			return 0, err
		}
		return tokens, nil
	}
	if access.AITokenLimit <= 0 {
		return 0, domain.ErrAIAccessDenied
	}
	if access.AITokensUsed+int64(tokens) > access.AITokenLimit {
		return 0, domain.ErrAITokenLimitExceeded
	}
	if err := u.users.AddAITokensUsed(ctx, nil, userID, int64(tokens)); err != nil {
		return 0, err
	}
	return tokens, nil
}
