package usecase

import (
	"context"

	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/repository"
)

var _ PlanUseCase = (*planUC)(nil)

type PlanUseCase interface {
	Create(ctx context.Context, ownerID, name, description string, priceSatang int64, durationDays int) (*model.Plan, error)
	Get(ctx context.Context, id string) (*model.Plan, error)
	List(ctx context.Context) ([]*model.Plan, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Plan, error)
	Delete(ctx context.Context, id string) error
}

type planUC struct {
	plans repository.PlanRepository
}

func NewPlanUseCase(plans repository.PlanRepository) *planUC {
	return &planUC{plans: plans}
}

func (u *planUC) Create(ctx context.Context, ownerID, name, description string, priceSatang int64, durationDays int) (*model.Plan, error) {
	p, err := model.NewPlan(ownerID, name, description, priceSatang, durationDays)
	if err != nil {
		return nil, err
	}
	if err := u.plans.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	return u.plans.FindByID(ctx, nil, id)
}

func (u *planUC) List(ctx context.Context) ([]*model.Plan, error) {
	return u.plans.List(ctx, nil)
}

func (u *planUC) ListByOwner(ctx context.Context, ownerID string) ([]*model.Plan, error) {
	return u.plans.ListByOwner(ctx, nil, ownerID)
}

func (u *planUC) Delete(ctx context.Context, id string) error {
	return u.plans.SoftDelete(ctx, nil, id)
}
