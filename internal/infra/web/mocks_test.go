//go:build !integration

package web

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type mockPaymentUC struct {
	InitiateFunc         func(ctx context.Context, memberID, planID string, method model.PaymentMethod, sourceToken string) (*usecase.InitiateResult, error)
	GetStatusFunc        func(ctx context.Context, paymentID string) (*model.Payment, error)
	HistoryFunc          func(ctx context.Context, memberID string, limit, offset int) ([]*usecase.HistoryItem, error)
	ReconcileWebhookFunc func(ctx context.Context, ev usecase.WebhookEvent) (usecase.WebhookOutcome, error)
	PollFunc             func(ctx context.Context, paymentID string, maxAttempts int, interval time.Duration) (*usecase.PollResult, error)

	reconcileCalls int
}

var _ usecase.PaymentUseCase = (*mockPaymentUC)(nil)

func (m *mockPaymentUC) Initiate(ctx context.Context, memberID, planID string, method model.PaymentMethod, sourceToken string) (*usecase.InitiateResult, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, memberID, planID, method, sourceToken)
	}
	return nil, domain.ErrOperationFailed
}

func (m *mockPaymentUC) GetStatus(ctx context.Context, paymentID string) (*model.Payment, error) {
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, paymentID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentUC) History(ctx context.Context, memberID string, limit, offset int) ([]*usecase.HistoryItem, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, memberID, limit, offset)
	}
	return nil, nil
}

func (m *mockPaymentUC) ReconcileWebhook(ctx context.Context, ev usecase.WebhookEvent) (usecase.WebhookOutcome, error) {
	m.reconcileCalls++
	if m.ReconcileWebhookFunc != nil {
		return m.ReconcileWebhookFunc(ctx, ev)
	}
	return usecase.WebhookProcessed, nil
}

func (m *mockPaymentUC) CreateSubscriptionFromPayment(ctx context.Context, paymentID string) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}

func (m *mockPaymentUC) Poll(ctx context.Context, paymentID string, maxAttempts int, interval time.Duration) (*usecase.PollResult, error) {
	if m.PollFunc != nil {
		return m.PollFunc(ctx, paymentID, maxAttempts, interval)
	}
	return nil, domain.ErrOperationFailed
}

func (m *mockPaymentUC) Refresh(ctx context.Context, paymentID string) (*model.Payment, error) {
	return nil, domain.ErrOperationFailed
}

type mockSubUC struct {
	ListByMemberFunc func(ctx context.Context, memberID string) ([]*model.Subscription, error)
	CancelFunc       func(ctx context.Context, memberID, subscriptionID string) (*model.Subscription, error)
}

var _ usecase.SubscriptionUseCase = (*mockSubUC)(nil)

func (m *mockSubUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	return nil, domain.ErrNotFound
}

func (m *mockSubUC) ListByMember(ctx context.Context, memberID string) ([]*model.Subscription, error) {
	if m.ListByMemberFunc != nil {
		return m.ListByMemberFunc(ctx, memberID)
	}
	return nil, nil
}

func (m *mockSubUC) Cancel(ctx context.Context, memberID, subscriptionID string) (*model.Subscription, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, memberID, subscriptionID)
	}
	return nil, domain.ErrNotFound
}

type mockPlanUC struct {
	ListFunc func(ctx context.Context) ([]*model.Plan, error)
}

var _ usecase.PlanUseCase = (*mockPlanUC)(nil)

func (m *mockPlanUC) Create(ctx context.Context, ownerID, name, description string, priceSatang int64, durationDays int) (*model.Plan, error) {
	return nil, domain.ErrOperationFailed
}

func (m *mockPlanUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	return nil, domain.ErrNotFound
}

func (m *mockPlanUC) List(ctx context.Context) ([]*model.Plan, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockPlanUC) ListByOwner(ctx context.Context, ownerID string) ([]*model.Plan, error) {
	return nil, nil
}

func (m *mockPlanUC) Delete(ctx context.Context, id string) error { return domain.ErrNotFound }

type mockMemberUC struct {
	RegisterFunc func(ctx context.Context, email, fullName, phone string) (*model.Member, error)
}

var _ usecase.MemberUseCase = (*mockMemberUC)(nil)

func (m *mockMemberUC) Register(ctx context.Context, email, fullName, phone string) (*model.Member, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, fullName, phone)
	}
	return nil, domain.ErrOperationFailed
}

func (m *mockMemberUC) Get(ctx context.Context, id string) (*model.Member, error) {
	return nil, domain.ErrNotFound
}

// mockLimiter scripts the rate limit decision.
type mockLimiter struct {
	allow bool
	err   error
	calls int
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.calls++
	return m.allow, m.err
}
