package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"saas-subscription-backend/internal/infra/logging"
	"saas-subscription-backend/internal/infra/metrics"
	"saas-subscription-backend/internal/usecase"
)

// webhookEnvelope is the provider event shape we consume.
type webhookEnvelope struct {
	Key  string `json:"key"` // e.g. "charge.complete"
	Data struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

// handleWebhook always answers 200 quickly: a non-2xx makes the provider
// retry, and a malformed or unmatchable event will not get better on
// redelivery. Real processing problems are logged and counted instead.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ack := func() {
		writeJSON(w, http.StatusOK, struct {
			Received bool `json:"received"`
		}{Received: true})
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook body read failed")
		metrics.IncWebhook(string(usecase.WebhookSkipped))
		ack()
		return
	}
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Data.ID == "" {
		s.log.Warn().Err(err).Msg("malformed webhook payload")
		metrics.IncWebhook(string(usecase.WebhookSkipped))
		ack()
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if id := env.Data.Metadata["payment_id"]; id != "" {
		ctx = logging.WithPaymentID(ctx, id)
	}
	log := logging.With(ctx, s.log)

	outcome, err := s.paymentUC.ReconcileWebhook(ctx, usecase.WebhookEvent{
		Key:      env.Key,
		ChargeID: env.Data.ID,
		Status:   env.Data.Status,
		Metadata: env.Data.Metadata,
		Raw:      body,
	})
	if err != nil {
		log.Error().Err(err).Str("charge_id", env.Data.ID).Msg("webhook reconciliation failed")
	} else {
		log.Info().Str("charge_id", env.Data.ID).Str("event", env.Key).
			Str("outcome", string(outcome)).Msg("webhook handled")
	}
	ack()
}
