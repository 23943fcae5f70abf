package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/ports/adapter"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Gateway
// declines carry their translated reason so clients can render specific
// guidance without knowing the provider vocabulary.
func writeError(w http.ResponseWriter, err error) {
	var gwErr *adapter.GatewayError
	if errors.As(err, &gwErr) {
		writeJSON(w, http.StatusPaymentRequired, errorBody{Error: "payment failed", Reason: string(gwErr.Reason)})
		return
	}
	switch {
	case errors.Is(err, domain.ErrDuplicateActiveSubscription):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrMissingPaymentSource),
		errors.Is(err, domain.ErrAmountBelowMinimum),
		errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
