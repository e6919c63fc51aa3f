// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/adapter"
	"edupay-service/internal/domain/ports/repository"
	"edupay-service/internal/infra/logging"
	"edupay-service/internal/infra/metrics"
	"edupay-service/internal/infra/payment"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// InitiateRequest carries one payment initiation attempt.
type InitiateRequest struct {
	UserID      string
	Phone       string
	Purpose     model.PaymentPurpose
	Description string
	// Amount is ignored for the registration fee (fixed server-side); for
	// subscriptions it must already equal the catalog price.
	Amount         int64
	SubscriptionID *string
}

// WebhookResult is what the webhook handler reports back; the HTTP layer
// answers 200 regardless.
type WebhookResult struct {
	Success bool
	Status  model.PaymentStatus
	Message string
}

type PaymentUseCase interface {
	// Fee returns the fixed registration fee and its currency.
	Fee() (int64, string)
	Initiate(ctx context.Context, req InitiateRequest) (*model.Payment, error)
	// CheckStatus reconciles the local record with the provider unless it is
	// already terminal. A non-empty userID must own the payment.
	CheckStatus(ctx context.Context, userID, transactionID string) (*model.Payment, error)
	// ProcessWebhook verifies and applies one signed provider callback.
	ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error)
	// SumByPeriod totals successful payments for the admin dashboard.
	SumByPeriod(ctx context.Context, period string) (int64, error)
}

// PaymentConfig is the slice of service config the use case needs.
type PaymentConfig struct {
	RegistrationFee int64
	Currency        string
	WebhookSecret   string
	DuplicateWindow time.Duration
}

type paymentUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	outbox   repository.OutboxRepository
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	cfg      PaymentConfig
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	outbox repository.OutboxRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	cfg PaymentConfig,
	logger *zerolog.Logger,
) *paymentUC {
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{payments: payments, subs: subs, outbox: outbox, gateway: gateway, tm: tm, cfg: cfg, log: &l}
}

func (u *paymentUC) Fee() (int64, string) {
	return u.cfg.RegistrationFee, u.cfg.Currency
}

func (u *paymentUC) Initiate(ctx context.Context, req InitiateRequest) (*model.Payment, error) {
	phone, err := model.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = model.PurposeRegistrationFee
	}
	if !purpose.Valid() {
		return nil, domain.ErrInvalidArgument
	}

	amount := req.Amount
	if purpose == model.PurposeRegistrationFee {
		amount = u.cfg.RegistrationFee
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	// Soft duplicate lock: one non-terminal payment per (user, purpose). The
	// partial unique index is the real guarantee; this check exists so the
	// caller gets the existing transaction id back instead of a 500.
	if prior, err := u.payments.FindNonTerminalByUserPurpose(ctx, nil, req.UserID, purpose); err == nil && prior != nil {
		if time.Since(prior.InitiatedAt) < u.cfg.DuplicateWindow {
			return nil, &domain.DuplicatePendingPaymentError{TransactionID: prior.TransactionID}
		}
		// Best-effort timeout: nobody confirmed this one within the window.
		if _, err := u.payments.UpdateStatusIfNotTerminal(ctx, nil, prior.ID, model.PaymentStatusFailed, nil, timePtr(time.Now()), "timeout"); err != nil {
			return nil, err
		}
		metrics.IncPayment(string(model.PaymentStatusFailed))
		u.log.Info().Str("payment_id", prior.ID).Msg("stale pending payment marked failed")
	}

	now := time.Now()
	p := &model.Payment{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		TransactionID:  ulid.Make().String(),
		Amount:         amount,
		PhoneNumber:    phone,
		Currency:       u.cfg.Currency,
		Purpose:        purpose,
		Description:    req.Description,
		Status:         model.PaymentStatusPending,
		InitiatedAt:    now,
		UpdatedAt:      now,
		SubscriptionID: req.SubscriptionID,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost the race against a concurrent initiation; hand back the
			// winner's reference.
			if winner, ferr := u.payments.FindNonTerminalByUserPurpose(ctx, nil, req.UserID, purpose); ferr == nil {
				return nil, &domain.DuplicatePendingPaymentError{TransactionID: winner.TransactionID}
			}
		}
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	res, err := u.gateway.Collect(ctx, adapter.CollectRequest{
		Amount:      amount,
		PhoneNumber: phone,
		Currency:    u.cfg.Currency,
		Reference:   p.TransactionID,
		Description: req.Description,
	})
	if err != nil {
		// Provider detail stays server-side; the caller gets a generic error.
		u.log.Error().Err(err).Str("transaction_id", p.TransactionID).Msg("provider collect failed")
		if _, uerr := u.payments.UpdateStatusIfNotTerminal(ctx, nil, p.ID, model.PaymentStatusFailed, nil, timePtr(time.Now()), "provider_error"); uerr != nil {
			u.log.Error().Err(uerr).Str("payment_id", p.ID).Msg("mark failed after collect error")
		}
		metrics.IncPayment(string(model.PaymentStatusFailed))
		return nil, domain.ErrPaymentInitiationFailed
	}

	if _, err := u.payments.UpdateStatusIfNotTerminal(ctx, nil, p.ID, model.PaymentStatusProcessing, &res.ProviderTxID, nil, ""); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatusProcessing
	p.ProviderTxID = &res.ProviderTxID
	metrics.IncPayment(string(model.PaymentStatusProcessing))
	u.log.Info().
		Str("transaction_id", p.TransactionID).
		Str("provider_tx_id", res.ProviderTxID).
		Str("phone", logging.Redact(phone, false)).
		Int64("amount", amount).
		Str("purpose", string(purpose)).
		Msg("payment initiated")
	return p, nil
}

func (u *paymentUC) CheckStatus(ctx context.Context, userID, transactionID string) (*model.Payment, error) {
	p, err := u.payments.FindByTransactionID(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}
	// Not-owned reads look identical to not-found; don't confirm existence.
	if userID != "" && p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if p.Status.Terminal() {
		return p, nil
	}
	if p.ProviderTxID == nil {
		return p, nil
	}

	st, err := u.gateway.Status(ctx, *p.ProviderTxID)
	if err != nil {
		return nil, err
	}
	target, ok := mapProviderStatus(st.Status)
	if !ok || !p.Status.CanTransition(target) {
		return p, nil
	}
	now := time.Now()
	applied, err := u.payments.UpdateStatusIfNotTerminal(ctx, nil, p.ID, target, nil, &now, "")
	if err != nil {
		return nil, err
	}
	if applied {
		p.Status = target
		p.CompletedAt = &now
		metrics.IncPayment(string(target))
		if target == model.PaymentStatusSuccess {
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
			if err := u.enqueueSuccessEffects(ctx, nil, p); err != nil {
				u.log.Error().Err(err).Str("payment_id", p.ID).Msg("enqueue success effects")
			}
		}
	}
	return p, nil
}

// webhookPayload is the provider callback body.
type webhookPayload struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	PhoneNumber   string `json:"phoneNumber"`
}

func (u *paymentUC) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error) {
	if !payment.VerifySignature(u.cfg.WebhookSecret, rawBody, signature) {
		metrics.IncWebhook("invalid_signature")
		return nil, domain.ErrInvalidSignature
	}

	var body webhookPayload
	if err := json.Unmarshal(rawBody, &body); err != nil {
		metrics.IncWebhook("malformed")
		return &WebhookResult{Success: false, Message: "malformed payload"}, nil
	}
	if body.Reference == "" {
		metrics.IncWebhook("no_reference")
		return &WebhookResult{Success: false, Message: "missing reference"}, nil
	}

	p, err := u.payments.FindByTransactionID(ctx, nil, body.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A payment this system never issued; benign no-op.
			u.log.Warn().Str("reference", body.Reference).Msg("webhook for unknown reference")
			metrics.IncWebhook("unknown_reference")
			return &WebhookResult{Success: false, Message: "unknown reference"}, nil
		}
		return nil, err
	}

	// Attempt bookkeeping happens regardless of outcome so replays are visible.
	if err := u.payments.RecordWebhookAttempt(ctx, nil, p.ID, rawBody); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("record webhook attempt")
	}

	target, ok := mapProviderStatus(body.Status)
	if !ok {
		metrics.IncWebhook("non_terminal")
		return &WebhookResult{Success: true, Status: p.Status, Message: "status unchanged"}, nil
	}

	var providerTx *string
	if body.TransactionID != "" {
		providerTx = &body.TransactionID
	}

	applied := false
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		ok, err := u.payments.UpdateStatusIfNotTerminal(ctx, tx, p.ID, target, providerTx, &now, "")
		if err != nil {
			return err
		}
		applied = ok
		if !ok || target != model.PaymentStatusSuccess {
			return nil
		}
		return u.enqueueSuccessEffects(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	if applied {
		p.Status = target
		metrics.IncPayment(string(target))
		if target == model.PaymentStatusSuccess {
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
		}
		metrics.IncWebhook("applied")
		u.log.Info().Str("payment_id", p.ID).Str("status", string(target)).Msg("webhook applied")
	} else {
		// Duplicate or conflicting replay of a terminal state; first write won.
		metrics.IncWebhook("replay")
		u.log.Debug().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("webhook replay ignored")
		target = p.Status
	}
	return &WebhookResult{Success: true, Status: target}, nil
}

// enqueueSuccessEffects persists the post-success side effects as outbox
// tasks: user fee flag, subscription activation, access recompute.
func (u *paymentUC) enqueueSuccessEffects(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if p.Purpose == model.PurposeRegistrationFee {
		if err := u.outbox.Enqueue(ctx, tx, model.NewOutboxTask(model.TaskMarkUserPaid, p.ID, p.UserID, nil)); err != nil {
			return err
		}
	}
	if p.Purpose == model.PurposeSubscription {
		subID := p.SubscriptionID
		if subID == nil {
			if sub, err := u.subs.FindByTransactionID(ctx, tx, p.TransactionID); err == nil {
				subID = &sub.ID
			}
		}
		if subID != nil {
			if err := u.outbox.Enqueue(ctx, tx, model.NewOutboxTask(model.TaskActivateSubscription, p.ID, p.UserID, subID)); err != nil {
				return err
			}
		}
	}
	return u.outbox.Enqueue(ctx, tx, model.NewOutboxTask(model.TaskRecomputeAccess, p.ID, p.UserID, nil))
}

func (u *paymentUC) SumByPeriod(ctx context.Context, period string) (int64, error) {
	switch period {
	case "day", "week", "month", "year":
	default:
		return 0, domain.ErrInvalidArgument
	}
	return u.payments.SumByPeriod(ctx, nil, period)
}

// mapProviderStatus translates the provider vocabulary into our terminal
// statuses. Anything unrecognized leaves the payment as-is.
func mapProviderStatus(s string) (model.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "successful", "completed", "success":
		return model.PaymentStatusSuccess, true
	case "failed", "cancelled", "canceled":
		return model.PaymentStatusFailed, true
	}
	return "", false
}

func timePtr(t time.Time) *time.Time { return &t }
