package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"saas-subscription-backend/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*OmiseGateway)(nil)

// OmiseGateway implements adapter.PaymentGateway against the Omise charge
// API (card charges and PromptPay sources). Authentication is HTTP basic
// with the secret key as username.
type OmiseGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewOmiseGateway(secretKey, baseURL string) (*OmiseGateway, error) {
	if secretKey == "" {
		return nil, errors.New("gateway secret key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.omise.co"
	}
	return &OmiseGateway{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *OmiseGateway) Name() string { return "omise" }

// chargePayload mirrors the subset of the provider charge object we read.
type chargePayload struct {
	Object      string `json:"object"`
	ID          string `json:"id"`
	Status      string `json:"status"`
	FailureCode string `json:"failure_code"`
	Message     string `json:"message"` // set when object == "error"
	Code        string `json:"code"`
	Source      *struct {
		ID string `json:"id"`
	} `json:"source"`
}

func (g *OmiseGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	body := map[string]any{
		"amount":      req.AmountSatang,
		"currency":    req.Currency,
		"description": req.Description,
		"capture":     req.Capture,
	}
	if req.SourceToken != "" {
		body["card"] = req.SourceToken
	}
	if req.SourceID != "" {
		body["source"] = req.SourceID
	}
	if req.Metadata != nil {
		body["metadata"] = req.Metadata
	}
	raw, err := g.post(ctx, "/charges", body)
	if err != nil {
		return nil, err
	}
	return parseCharge(raw)
}

func (g *OmiseGateway) CreateSource(ctx context.Context, amountSatang int64, currency string) (*adapter.Source, error) {
	body := map[string]any{
		"type":     "promptpay",
		"amount":   amountSatang,
		"currency": currency,
	}
	raw, err := g.post(ctx, "/sources", body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Object        string    `json:"object"`
		ID            string    `json:"id"`
		Message       string    `json:"message"`
		Code          string    `json:"code"`
		ExpiresAt     time.Time `json:"expires_at"`
		ScannableCode *struct {
			Image struct {
				DownloadURI string `json:"download_uri"`
			} `json:"image"`
		} `json:"scannable_code"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &adapter.GatewayError{Reason: adapter.FailureProcessingError, Msg: "decode source: " + err.Error()}
	}
	if out.Object == "error" || out.ID == "" {
		return nil, &adapter.GatewayError{Reason: mapFailureCode(out.Code), Msg: out.Message}
	}
	src := &adapter.Source{ID: out.ID, ExpiresAt: out.ExpiresAt}
	if out.ScannableCode != nil {
		src.ScannableCodeURI = out.ScannableCode.Image.DownloadURI
	}
	return src, nil
}

func (g *OmiseGateway) RetrieveCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/charges/"+chargeID, nil)
	if err != nil {
		return nil, err
	}
	raw, err := g.do(req)
	if err != nil {
		return nil, err
	}
	return parseCharge(raw)
}

func (g *OmiseGateway) post(ctx context.Context, path string, body map[string]any) (json.RawMessage, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req)
}

func (g *OmiseGateway) do(req *http.Request) (json.RawMessage, error) {
	req.SetBasicAuth(g.secretKey, "")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &adapter.GatewayError{Reason: adapter.FailureGatewayUnreachable, Msg: err.Error()}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &adapter.GatewayError{Reason: adapter.FailureGatewayUnreachable, Msg: err.Error()}
	}
	if resp.StatusCode >= 500 {
		return nil, &adapter.GatewayError{
			Reason: adapter.FailureProcessingError,
			Msg:    fmt.Sprintf("provider returned %d", resp.StatusCode),
		}
	}
	// 4xx payloads carry an error object; parsed by the caller.
	return raw, nil
}

func parseCharge(raw json.RawMessage) (*adapter.Charge, error) {
	var out chargePayload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &adapter.GatewayError{Reason: adapter.FailureProcessingError, Msg: "decode charge: " + err.Error()}
	}
	if out.Object == "error" {
		return nil, &adapter.GatewayError{Reason: mapFailureCode(out.Code), Msg: out.Message}
	}
	// A failed charge is a valid charge object with a failure_code; the
	// status mapping downgrades it, but a declined card surfaces as an
	// error to the purchase flow.
	if out.Status == "failed" && out.FailureCode != "" {
		return nil, &adapter.GatewayError{Reason: mapFailureCode(out.FailureCode), Msg: "charge failed: " + out.FailureCode}
	}
	c := &adapter.Charge{
		ID:          out.ID,
		Status:      out.Status,
		FailureCode: out.FailureCode,
		Raw:         raw,
	}
	if out.Source != nil {
		c.SourceID = out.Source.ID
	}
	return c, nil
}

// mapFailureCode translates provider failure codes into the stable local
// vocabulary so clients can render specific guidance.
func mapFailureCode(code string) adapter.FailureReason {
	switch code {
	case "invalid_card", "invalid_security_code", "invalid_card_token", "bad_request":
		return adapter.FailureInvalidCard
	case "insufficient_fund", "insufficient_balance":
		return adapter.FailureInsufficientFunds
	case "expired_card":
		return adapter.FailureExpiredCard
	default:
		return adapter.FailureProcessingError
	}
}
