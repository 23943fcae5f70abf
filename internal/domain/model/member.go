package model

import (
	"time"

	"github.com/google/uuid"

	"saas-subscription-backend/internal/domain"
)

// Member is a purchasing identity, decoupled from owner organizations.
type Member struct {
	ID        string // UUID
	Email     string // unique
	FullName  string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewMember(email, fullName, phone string) (*Member, error) {
	if email == "" || fullName == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Member{
		ID:        uuid.NewString(),
		Email:     email,
		FullName:  fullName,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
