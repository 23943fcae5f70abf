package repository

import (
	"context"

	"saas-subscription-backend/internal/domain/model"
)

type SubscriptionRepository interface {
	// Create inserts the subscription. If one already exists for the same
	// payment (unique payment_id), implementations return the existing row
	// and domain.ErrAlreadyExists so racing reconciliation paths converge.
	Create(ctx context.Context, tx Tx, sub *model.Subscription) (*model.Subscription, error)

	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Subscription, error)
	FindActiveByMemberAndPlan(ctx context.Context, tx Tx, memberID, planID string) (*model.Subscription, error)
	ListByMember(ctx context.Context, tx Tx, memberID string) ([]*model.Subscription, error)

	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus) error
}
