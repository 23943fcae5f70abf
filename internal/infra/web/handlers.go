package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/usecase"
)

type purchaseRequest struct {
	PlanID        string `json:"plan_id" validate:"required,uuid4"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=card promptpay"`
	SourceToken   string `json:"source_token,omitempty"`
}

type paymentResponse struct {
	PaymentID       string     `json:"payment_id"`
	GatewayChargeID *string    `json:"gateway_charge_id,omitempty"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	Method          string     `json:"payment_method"`
	Status          string     `json:"status"`
	QRCodeURI       string     `json:"qr_code_uri,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:       p.ID,
		GatewayChargeID: p.GatewayChargeID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Method:          string(p.Method),
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
	}
}

func (s *Server) handleInitiatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res, err := s.paymentUC.Initiate(r.Context(), MemberID(r.Context()), req.PlanID, model.PaymentMethod(req.PaymentMethod), req.SourceToken)
	if err != nil {
		writeError(w, err)
		return
	}
	out := toPaymentResponse(res.Payment)
	out.QRCodeURI = res.QRCodeURI
	out.ExpiresAt = res.ExpiresAt
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.paymentUC.GetStatus(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if p.MemberID != MemberID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "payment not found"})
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// handlePaymentWait blocks (bounded) until the payment reaches a terminal
// status or the polling window runs out. A timeout is 202, not an error:
// the charge may still clear and the client should check back later.
func (s *Server) handlePaymentWait(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	p, err := s.paymentUC.GetStatus(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.MemberID != MemberID(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "payment not found"})
		return
	}

	res, err := s.paymentUC.Poll(r.Context(), paymentID, s.pollMaxAttempts, s.pollInterval)
	if err != nil {
		// Client went away or the store failed; nothing to render.
		if r.Context().Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	out := struct {
		Outcome string          `json:"outcome"`
		Payment paymentResponse `json:"payment"`
	}{Outcome: string(res.Outcome), Payment: toPaymentResponse(res.Payment)}

	code := http.StatusOK
	if res.Outcome == usecase.PollTimeout {
		code = http.StatusAccepted
	}
	writeJSON(w, code, out)
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	items, err := s.paymentUC.History(r.Context(), MemberID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	type historyEntry struct {
		Payment        paymentResponse `json:"payment"`
		SubscriptionID *string         `json:"subscription_id,omitempty"`
	}
	out := make([]historyEntry, 0, len(items))
	for _, it := range items {
		e := historyEntry{Payment: toPaymentResponse(it.Payment)}
		if it.Subscription != nil {
			id := it.Subscription.ID
			e.SubscriptionID = &id
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, struct {
		Data []historyEntry `json:"data"`
	}{Data: out})
}

type subscriptionResponse struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	PaymentID string    `json:"payment_id"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        sub.ID,
		PlanID:    sub.PlanID,
		PaymentID: sub.PaymentID,
		Status:    string(sub.Status),
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
	}
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subUC.ListByMember(r.Context(), MemberID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, struct {
		Data []subscriptionResponse `json:"data"`
	}{Data: out})
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.Cancel(r.Context(), MemberID(r.Context()), chi.URLParam(r, "subscriptionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	var plans []*model.Plan
	var err error
	if ownerID := r.URL.Query().Get("owner_id"); ownerID != "" {
		plans, err = s.planUC.ListByOwner(r.Context(), ownerID)
	} else {
		plans, err = s.planUC.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	type planResponse struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		PriceSatang  int64  `json:"price_satang"`
		DurationDays int    `json:"duration_days"`
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			PriceSatang:  p.PriceSatang,
			DurationDays: p.DurationDays,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Data []planResponse `json:"data"`
	}{Data: out})
}

type registerMemberRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone,omitempty"`
}

func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req registerMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	m, err := s.memberUC.Register(r.Context(), req.Email, req.FullName, req.Phone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}{ID: m.ID, Email: m.Email})
}
