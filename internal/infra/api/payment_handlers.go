package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/infra/logging"
	"edupay-service/internal/usecase"
)

const maxWebhookBody = 64 << 10

type PaymentHandlers struct {
	payUC usecase.PaymentUseCase
	log   *zerolog.Logger
}

func NewPaymentHandlers(payUC usecase.PaymentUseCase, logger *zerolog.Logger) *PaymentHandlers {
	l := logger.With().Str("component", "PaymentAPI").Logger()
	return &PaymentHandlers{payUC: payUC, log: &l}
}

// Fee is public: prospective users see the registration fee before signing up.
func (h *PaymentHandlers) Fee(w http.ResponseWriter, r *http.Request) {
	amount, currency := h.payUC.Fee()
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":          amount,
		"currency":        currency,
		"formattedAmount": formatAmount(amount, currency),
	})
}

// formatAmount renders a minor-unit XAF amount for display, with thousands
// separated by spaces: 5000 -> "5 000 XAF".
func formatAmount(amount int64, currency string) string {
	digits := strconv.FormatInt(amount, 10)
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 && (!neg || b.Len() > 1) {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String() + " " + currency
}

type initiateBody struct {
	PhoneNumber string `json:"phoneNumber"`
	Purpose     string `json:"purpose,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	Description string `json:"description,omitempty"`
}

type paymentView struct {
	TransactionID   string     `json:"transactionId"`
	Status          string     `json:"status"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	Purpose         string     `json:"purpose"`
	PhoneNumber     string     `json:"phoneNumber"`
	WebhookReceived bool       `json:"webhookReceived"`
	InitiatedAt     time.Time  `json:"initiatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func toPaymentView(p *model.Payment) paymentView {
	return paymentView{
		TransactionID:   p.TransactionID,
		Status:          string(p.Status),
		Amount:          p.Amount,
		Currency:        p.Currency,
		Purpose:         string(p.Purpose),
		PhoneNumber:     p.PhoneNumber,
		WebhookReceived: p.WebhookReceived,
		InitiatedAt:     p.InitiatedAt,
		CompletedAt:     p.CompletedAt,
	}
}

func (h *PaymentHandlers) Initiate(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var body initiateBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.payUC.Initiate(r.Context(), usecase.InitiateRequest{
		UserID:      claims.UserID,
		Phone:       body.PhoneNumber,
		Purpose:     model.PaymentPurpose(body.Purpose),
		Amount:      body.Amount,
		Description: body.Description,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toPaymentView(p))
}

func (h *PaymentHandlers) Status(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	txID := chi.URLParam(r, "transactionId")
	if txID == "" {
		writeError(w, r, h.log, domain.ErrInvalidArgument)
		return
	}
	p, err := h.payUC.CheckStatus(r.Context(), claims.UserID, txID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

// Webhook receives the provider callback. It always answers 200, whatever
// happened inside: a non-200 would make the provider retry forever, and a
// forged or broken callback is our problem to log, not the provider's to
// resend.
func (h *PaymentHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logging.With(r.Context(), h.log).Warn().Err(err).Msg("unreadable webhook body")
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "success": false})
		return
	}
	sig := r.Header.Get("X-Signature")

	res, err := h.payUC.ProcessWebhook(r.Context(), raw, sig)
	if err != nil {
		if err == domain.ErrInvalidSignature {
			logging.With(r.Context(), h.log).Warn().Msg("webhook signature rejected")
		} else {
			logging.With(r.Context(), h.log).Error().Err(err).Msg("webhook processing failed")
		}
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "success": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"success":  res.Success,
	})
}

// Revenue is the admin dashboard total of successful payments for a period.
func (h *PaymentHandlers) Revenue(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	total, err := h.payUC.SumByPeriod(r.Context(), period)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period": period,
		"total":  total,
	})
}
