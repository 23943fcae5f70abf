package repository

import (
	"context"

	"saas-subscription-backend/internal/domain/model"
)

type PlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Plan) error
	// FindByID returns soft-deleted plans too; reconciliation still needs
	// the duration of a plan that was deleted after purchase. Callers that
	// must exclude deleted plans check Plan.Deleted.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.Plan, error)
	List(ctx context.Context, tx Tx) ([]*model.Plan, error)
	SoftDelete(ctx context.Context, tx Tx, id string) error
}
