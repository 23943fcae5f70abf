package repository

import (
	"context"

	"saas-subscription-backend/internal/domain/model"
)

type MemberRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Member) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Member, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.Member, error)
}
