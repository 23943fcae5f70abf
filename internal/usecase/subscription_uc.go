package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/repository"
	"saas-subscription-backend/internal/infra/metrics"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	Get(ctx context.Context, id string) (*model.Subscription, error)
	ListByMember(ctx context.Context, memberID string) ([]*model.Subscription, error)
	// Cancel is idempotent: cancelling an already-cancelled subscription
	// returns it unchanged.
	Cancel(ctx context.Context, memberID, subscriptionID string) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{subs: subs, log: logger}
}

func (u *subscriptionUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	return u.subs.FindByID(ctx, nil, id)
}

func (u *subscriptionUC) ListByMember(ctx context.Context, memberID string) ([]*model.Subscription, error) {
	return u.subs.ListByMember(ctx, nil, memberID)
}

func (u *subscriptionUC) Cancel(ctx context.Context, memberID, subscriptionID string) (*model.Subscription, error) {
	sub, err := u.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.MemberID != memberID {
		// Do not leak other members' subscription ids.
		return nil, domain.ErrNotFound
	}
	if sub.Status == model.SubscriptionStatusCancelled {
		return sub, nil
	}
	if err := u.subs.UpdateStatus(ctx, nil, sub.ID, model.SubscriptionStatusCancelled); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return sub, nil
		}
		return nil, err
	}
	sub.Status = model.SubscriptionStatusCancelled
	metrics.IncSubscription(string(model.SubscriptionStatusCancelled))
	return sub, nil
}
