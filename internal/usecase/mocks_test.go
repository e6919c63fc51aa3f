// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/adapter"
	"edupay-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ===== payment repository =====

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
}

var _ repository.PaymentRepository = (*mockPaymentRepo)(nil)

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[string]*model.Payment)}
}

func (m *mockPaymentRepo) Save(ctx context.Context, qx any, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Mirror the partial unique index: one non-terminal payment per
	// (user, purpose).
	if !p.Status.Terminal() {
		for _, other := range m.payments {
			if other.ID != p.ID && other.UserID == p.UserID && other.Purpose == p.Purpose && !other.Status.Terminal() {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, qx any, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentRepo) FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TransactionID == transactionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentRepo) FindNonTerminalByUserPurpose(ctx context.Context, qx any, userID string, purpose model.PaymentPurpose) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var newest *model.Payment
	for _, p := range m.payments {
		if p.UserID != userID || p.Purpose != purpose || p.Status.Terminal() {
			continue
		}
		if newest == nil || p.InitiatedAt.After(newest.InitiatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *mockPaymentRepo) UpdateStatusIfNotTerminal(ctx context.Context, qx any, id string, status model.PaymentStatus, providerTxID *string, completedAt *time.Time, failureReason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, nil
	}
	if !p.Status.CanTransition(status) {
		return false, nil
	}
	p.Status = status
	if providerTxID != nil {
		p.ProviderTxID = providerTxID
	}
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	if failureReason != "" {
		p.FailureReason = failureReason
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockPaymentRepo) RecordWebhookAttempt(ctx context.Context, qx any, id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.WebhookReceived = true
	p.WebhookAttempts++
	p.LastWebhookPayload = payload
	return nil
}

func (m *mockPaymentRepo) ListNonTerminalOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if !p.Status.Terminal() && p.InitiatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.Before(out[j].InitiatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockPaymentRepo) SumByPeriod(ctx context.Context, qx any, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusSuccess {
			total += p.Amount
		}
	}
	return total, nil
}

func (m *mockPaymentRepo) get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// ===== subscription repository =====

type mockSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription
}

var _ repository.SubscriptionRepository = (*mockSubscriptionRepo)(nil)

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: make(map[string]*model.Subscription)}
}

func (m *mockSubscriptionRepo) Save(ctx context.Context, qx any, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *mockSubscriptionRepo) FindByID(ctx context.Context, qx any, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockSubscriptionRepo) FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.TransactionID == transactionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockSubscriptionRepo) ListByUser(ctx context.Context, qx any, userID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockSubscriptionRepo) FindActiveByUserAndPlan(ctx context.Context, qx any, userID string, plan model.PlanType) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, s := range m.subs {
		if s.UserID == userID && s.PlanType == plan && s.Status == model.SubscriptionStatusActive && now.Before(s.EndAt) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockSubscriptionRepo) ExpireDue(ctx context.Context, qx any, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		if s.Status == model.SubscriptionStatusActive && !now.Before(s.EndAt) {
			s.Status = model.SubscriptionStatusExpired
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *mockSubscriptionRepo) ListPendingOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.Status == model.SubscriptionStatusPending && s.CreatedAt.Before(olderThan) {
			cp := *s
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSubscriptionRepo) Delete(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	return nil
}

func (m *mockSubscriptionRepo) ListAll(ctx context.Context, qx any, limit, offset int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSubscriptionRepo) CountByStatus(ctx context.Context, qx any) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.subs {
		out[s.Status]++
	}
	return out, nil
}

func (m *mockSubscriptionRepo) get(id string) *model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// ===== user repository =====

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Save(ctx context.Context, qx any, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, qx any, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) MarkPaymentCompleted(ctx context.Context, qx any, id string, amount int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if u.PaymentCompleted {
		return false, nil
	}
	u.PaymentCompleted = true
	u.PaymentAmount = amount
	u.PaymentDate = &at
	return true, nil
}

func (m *mockUserRepo) UpdateAccess(ctx context.Context, qx any, id string, access model.AccessLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Access = access
	return nil
}

func (m *mockUserRepo) AddAITokensUsed(ctx context.Context, qx any, id string, tokens int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Access.AITokensUsed += tokens
	return nil
}

func (m *mockUserRepo) get(id string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

// ===== outbox repository =====

type mockOutboxRepo struct {
	mu    sync.Mutex
	tasks []*model.OutboxTask
}

var _ repository.OutboxRepository = (*mockOutboxRepo)(nil)

func newMockOutboxRepo() *mockOutboxRepo { return &mockOutboxRepo{} }

func (m *mockOutboxRepo) Enqueue(ctx context.Context, qx any, t *model.OutboxTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks = append(m.tasks, &cp)
	return nil
}

func (m *mockOutboxRepo) ClaimDue(ctx context.Context, qx any, now time.Time, limit int) ([]*model.OutboxTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OutboxTask
	for _, t := range m.tasks {
		if t.Status == model.OutboxStatusPending && !t.NextAttemptAt.After(now) {
			cp := *t
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockOutboxRepo) MarkDone(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			t.Status = model.OutboxStatusDone
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, qx any, id string, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			t.Attempts = attempts
			t.NextAttemptAt = nextAttemptAt
			t.LastError = lastErr
			if dead {
				t.Status = model.OutboxStatusDead
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockOutboxRepo) pending() []*model.OutboxTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OutboxTask
	for _, t := range m.tasks {
		if t.Status == model.OutboxStatusPending {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// ===== gateway =====

type mockGateway struct {
	mu          sync.Mutex
	collectErr  error
	statusValue string
	collects    []adapter.CollectRequest
	seq         int
}

var _ adapter.PaymentGateway = (*mockGateway)(nil)

func newMockGateway() *mockGateway { return &mockGateway{statusValue: "pending"} }

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) Collect(ctx context.Context, req adapter.CollectRequest) (*adapter.CollectResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.collectErr != nil {
		return nil, g.collectErr
	}
	g.collects = append(g.collects, req)
	g.seq++
	return &adapter.CollectResult{ProviderTxID: "prov-" + req.Reference, Status: "pending"}, nil
}

func (g *mockGateway) Status(ctx context.Context, providerTxID string) (*adapter.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &adapter.StatusResult{Status: g.statusValue}, nil
}

func (g *mockGateway) setStatus(s string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusValue = s
}

func (g *mockGateway) setCollectErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.collectErr = err
}

// ===== transaction manager =====

// mockTxManager runs the function directly; the mocks are not transactional.
type mockTxManager struct{}

var _ repository.TransactionManager = (*mockTxManager)(nil)

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
