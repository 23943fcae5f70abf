package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// FailureReason is the stable local vocabulary for provider decline codes,
// so clients never need to know the provider's own failure strings.
type FailureReason string

const (
	FailureInvalidCard        FailureReason = "invalid_card"
	FailureInsufficientFunds  FailureReason = "insufficient_funds"
	FailureExpiredCard        FailureReason = "expired_card"
	FailureProcessingError    FailureReason = "processing_error"
	FailureGatewayUnreachable FailureReason = "gateway_unreachable"
)

// GatewayError wraps a provider failure with its translated reason.
type GatewayError struct {
	Reason FailureReason
	Msg    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s (%s)", e.Msg, e.Reason)
}

// ChargeRequest describes a create-charge call. Amounts are always minor
// currency units (satang) to avoid floating-point rounding.
type ChargeRequest struct {
	AmountSatang int64
	Currency     string
	Description  string
	SourceToken  string // tokenized card, card method only
	SourceID     string // provider source id, promptpay method only
	Capture      bool
	Metadata     map[string]string
}

// Charge is the provider's view of a charge. Raw keeps the untouched
// response payload for the payment audit column.
type Charge struct {
	ID          string
	Status      string // provider vocabulary; mapped by model.StatusFromGateway
	SourceID    string
	FailureCode string
	Raw         json.RawMessage
}

// Source is the provider object backing an asynchronous payment method.
type Source struct {
	ID               string
	ScannableCodeURI string // QR image for the payer
	ExpiresAt        time.Time
}

// PaymentGateway is the port for the external charge API.
type PaymentGateway interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// CreateSource is the first step of the promptpay flow; the returned
	// source id is then charged with Capture=false.
	CreateSource(ctx context.Context, amountSatang int64, currency string) (*Source, error)
	RetrieveCharge(ctx context.Context, chargeID string) (*Charge, error)
}
