package model

import (
	"time"

	"github.com/google/uuid"

	"saas-subscription-backend/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is the access grant created by a successful payment.
// PaymentID is unique at the storage layer: at most one subscription per
// payment, no matter how many reconciliation paths race to create it.
type Subscription struct {
	ID        string // UUID
	MemberID  string // UUID
	PlanID    string // UUID
	PaymentID string // ULID of the payment that granted it
	Status    SubscriptionStatus
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription starts the grant at the payment-success time and runs it
// for the plan duration.
func NewSubscription(memberID, planID, paymentID string, plan *Plan, now time.Time) (*Subscription, error) {
	if memberID == "" || planID == "" || paymentID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		PlanID:    planID,
		PaymentID: paymentID,
		Status:    SubscriptionStatusActive,
		StartDate: now,
		EndDate:   now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Subscription) Active(now time.Time) bool {
	return s != nil && s.Status == SubscriptionStatusActive && now.Before(s.EndDate)
}
