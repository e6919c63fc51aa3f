package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"edupay-service/internal/domain"
	"edupay-service/internal/infra/logging"
)

type errorBody struct {
	Error         string `json:"error"`
	TransactionID string `json:"transactionId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP statuses. Provider and database
// detail never crosses this boundary; unknown errors are logged and answered
// with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	if dup, ok := domain.IsDuplicatePendingPayment(err); ok {
		writeJSON(w, http.StatusConflict, errorBody{
			Error:         "a payment for this purpose is already pending",
			TransactionID: dup.TransactionID,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrInvalidPhoneFormat):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid phone number format"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request"})
	case errors.Is(err, domain.ErrAmountMismatch):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "amount does not match plan price"})
	case errors.Is(err, domain.ErrUnknownPlan):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown plan"})
	case errors.Is(err, domain.ErrDuplicateActiveSubscription):
		writeJSON(w, http.StatusConflict, errorBody{Error: "an active subscription for this plan already exists"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrPaymentInitiationFailed):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "payment initiation failed, please try again"})
	case errors.Is(err, domain.ErrAIAccessDenied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "no AI access on current plan"})
	case errors.Is(err, domain.ErrAITokenLimitExceeded):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "AI token limit exceeded"})
	default:
		logging.With(r.Context(), logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}
