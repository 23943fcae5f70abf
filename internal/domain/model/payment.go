package model

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"saas-subscription-backend/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // created locally; awaiting gateway resolution
	PaymentStatusSuccessful PaymentStatus = "successful" // charge captured at provider
	PaymentStatusFailed     PaymentStatus = "failed"     // declined, voided, or gateway call failed
	PaymentStatusExpired    PaymentStatus = "expired"    // payer never completed the out-of-band step
	PaymentStatusRefunded   PaymentStatus = "refunded"   // provider reversed a captured charge
)

type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodPromptPay PaymentMethod = "promptpay"
)

// Terminal reports whether the status can no longer change, except for the
// single successful -> refunded transition.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

// CanTransition encodes the forward-only state machine:
// pending may move to any terminal status, successful may only move to
// refunded, and every other status is frozen. A self transition is not a
// forward move; callers treat it as a no-op.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusSuccessful || next == PaymentStatusFailed ||
			next == PaymentStatusExpired || next == PaymentStatusRefunded
	case PaymentStatusSuccessful:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

// StatusFromGateway maps a provider charge status onto the local enum.
// The mapping is total: an unrecognized provider status maps to pending
// rather than failing, so a provider vocabulary change never breaks
// reconciliation. Callers log unknown values for investigation.
func StatusFromGateway(gatewayStatus string) (PaymentStatus, bool) {
	switch gatewayStatus {
	case "pending":
		return PaymentStatusPending, true
	case "successful":
		return PaymentStatusSuccessful, true
	case "failed":
		return PaymentStatusFailed, true
	case "expired":
		return PaymentStatusExpired, true
	case "reversed":
		return PaymentStatusRefunded, true
	case "voided":
		return PaymentStatusFailed, true
	default:
		return PaymentStatusPending, false
	}
}

// Payment records one purchase attempt and its lifecycle. Rows are never
// deleted; they are the financial audit trail.
type Payment struct {
	ID              string        // ULID, generated locally before the gateway call
	MemberID        string        // UUID, immutable after creation
	PlanID          string        // UUID, immutable after creation
	Amount          int64         // satang, snapshot of the plan price at creation
	Currency        string        // "THB"
	Method          PaymentMethod // card | promptpay
	Status          PaymentStatus
	GatewayChargeID *string         // provider charge id, set after the gateway call
	GatewaySourceID *string         // provider source id (promptpay only)
	GatewayResponse json.RawMessage // last raw provider payload, for audit/debug
	Description     string
	Metadata        map[string]string // denormalized plan/member names for display
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPayment snapshots the plan price into a fresh pending payment.
func NewPayment(member *Member, plan *Plan, method PaymentMethod) (*Payment, error) {
	if member == nil || plan == nil {
		return nil, domain.ErrInvalidArgument
	}
	if method != PaymentMethodCard && method != PaymentMethodPromptPay {
		return nil, domain.ErrInvalidPaymentMethod
	}
	now := time.Now()
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	return &Payment{
		ID:          id,
		MemberID:    member.ID,
		PlanID:      plan.ID,
		Amount:      plan.PriceSatang,
		Currency:    "THB",
		Method:      method,
		Status:      PaymentStatusPending,
		Description: plan.Name + " subscription for " + member.Email,
		// payment_id rides along in charge metadata so webhooks can find the row
		Metadata: map[string]string{
			"payment_id":  id,
			"plan_name":   plan.Name,
			"member_name": member.FullName,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
