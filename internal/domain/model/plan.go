package model

import (
	"time"

	"github.com/google/uuid"

	"saas-subscription-backend/internal/domain"
)

// Plan is a purchasable offering defined by an owner organization.
// The payment core treats the price/duration as fixed at the moment a
// payment is created: the amount is copied, never referenced.
type Plan struct {
	ID           string // UUID
	OwnerID      string // UUID of the tenant organization
	Name         string
	Description  string
	PriceSatang  int64 // THB minor units; never floating point
	DurationDays int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time // soft delete
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

func (p *Plan) Deleted() bool { return p != nil && p.DeletedAt != nil }

// NewPlan validates and constructs a plan.
func NewPlan(ownerID, name, description string, priceSatang int64, durationDays int) (*Plan, error) {
	if ownerID == "" || name == "" || priceSatang <= 0 || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Plan{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         name,
		Description:  description,
		PriceSatang:  priceSatang,
		DurationDays: durationDays,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
