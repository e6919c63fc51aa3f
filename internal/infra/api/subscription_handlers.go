package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/usecase"
)

type SubscriptionHandlers struct {
	subUC    usecase.SubscriptionUseCase
	accessUC usecase.AccessUseCase
	log      *zerolog.Logger
}

func NewSubscriptionHandlers(subUC usecase.SubscriptionUseCase, accessUC usecase.AccessUseCase, logger *zerolog.Logger) *SubscriptionHandlers {
	l := logger.With().Str("component", "SubscriptionAPI").Logger()
	return &SubscriptionHandlers{subUC: subUC, accessUC: accessUC, log: &l}
}

type planView struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	DurationDays int    `json:"durationDays"`
	CourseAccess bool   `json:"courseAccess"`
	TestAccess   bool   `json:"testAccess"`
	UnlimitedAI  bool   `json:"unlimitedAi"`
	AITokenLimit int64  `json:"aiTokenLimit"`
}

func (h *SubscriptionHandlers) Plans(w http.ResponseWriter, r *http.Request) {
	plans := h.subUC.Plans()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{
			Type:         string(p.Type),
			Name:         p.Name,
			Price:        p.Price,
			Currency:     "XAF",
			DurationDays: p.DurationDays,
			CourseAccess: p.CourseAccess,
			TestAccess:   p.TestAccess,
			UnlimitedAI:  p.UnlimitedAI,
			AITokenLimit: p.AITokenLimit,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

type subscribeBody struct {
	Plan        string  `json:"plan"`
	CourseID    *string `json:"courseId,omitempty"`
	PhoneNumber string  `json:"phoneNumber"`
	Amount      int64   `json:"amount"`
}

type subscriptionView struct {
	ID            string    `json:"id"`
	Plan          string    `json:"plan"`
	CourseID      *string   `json:"courseId,omitempty"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transactionId,omitempty"`
	StartAt       time.Time `json:"startAt"`
	EndAt         time.Time `json:"endAt"`
	Active        bool      `json:"active"`
}

func toSubscriptionView(s *model.Subscription, now time.Time) subscriptionView {
	return subscriptionView{
		ID:            s.ID,
		Plan:          string(s.PlanType),
		CourseID:      s.CourseID,
		Status:        string(s.Status),
		Amount:        s.Amount,
		Currency:      s.Currency,
		TransactionID: s.TransactionID,
		StartAt:       s.StartAt,
		EndAt:         s.EndAt,
		Active:        s.ActiveNow(now),
	}
}

func (h *SubscriptionHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var body subscribeBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	sub, pay, err := h.subUC.Subscribe(r.Context(), claims.UserID, model.PlanType(body.Plan), body.CourseID, body.PhoneNumber, body.Amount)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"subscription": toSubscriptionView(sub, time.Now()),
		"payment":      toPaymentView(pay),
	})
}

func (h *SubscriptionHandlers) MySubscriptions(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	subs, err := h.subUC.MySubscriptions(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	now := time.Now()
	out := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionView(s, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": out})
}

// CheckAccess answers "may this user use this service right now". Expiry
// refresh is part of the call, so the answer never reflects stale status rows.
func (h *SubscriptionHandlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	service := r.URL.Query().Get("service")
	var courseID *string
	if c := r.URL.Query().Get("courseId"); c != "" {
		courseID = &c
	}
	allowed, err := h.subUC.CheckAccess(r.Context(), claims.UserID, service, courseID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": service,
		"allowed": allowed,
	})
}

func (h *SubscriptionHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, h.log, domain.ErrInvalidArgument)
		return
	}
	sub, err := h.subUC.Cancel(r.Context(), claims.UserID, id, claims.IsAdmin)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionView(sub, time.Now()))
}

type aiUsageBody struct {
	Prompt string `json:"prompt"`
}

// RecordAIUsage meters an AI prompt against the user's token quota before the
// caller forwards it to the model.
func (h *SubscriptionHandlers) RecordAIUsage(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var body aiUsageBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if body.Prompt == "" {
		writeError(w, r, h.log, domain.ErrInvalidArgument)
		return
	}
	tokens, err := h.accessUC.RecordAIUsage(r.Context(), claims.UserID, body.Prompt)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (h *SubscriptionHandlers) AdminListAll(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	subs, err := h.subUC.ListAll(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	now := time.Now()
	out := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionView(s, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": out,
		"limit":         limit,
		"offset":        offset,
	})
}

// AdminExpireCheck runs the expiry sweep on demand.
func (h *SubscriptionHandlers) AdminExpireCheck(w http.ResponseWriter, r *http.Request) {
	n, err := h.subUC.ExpireDue(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": n})
}
