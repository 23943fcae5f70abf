//go:build !integration

package usecase

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/adapter"
	"saas-subscription-backend/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// memDedup is a TTL-less dedup used by unit tests.
type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDedup() *memDedup { return &memDedup{seen: make(map[string]bool)} }

func (d *memDedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[key] {
		return true
	}
	d.seen[key] = true
	return false
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment

	SaveFunc           func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	SetGatewayRefsFunc func(ctx context.Context, tx repository.Tx, id string, chargeID, sourceID *string, gatewayResponse json.RawMessage) error

	statusUpdates int // count of forward transitions that landed
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) ListByMember(ctx context.Context, tx repository.Tx, memberID string, limit, offset int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.MemberID == memberID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) UpdateStatusForward(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, gatewayResponse json.RawMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, nil
	}
	if !p.Status.CanTransition(next) {
		return false, nil
	}
	p.Status = next
	if len(gatewayResponse) > 0 {
		p.GatewayResponse = gatewayResponse
	}
	p.UpdatedAt = time.Now()
	m.statusUpdates++
	return true, nil
}

func (m *memPaymentRepo) SetGatewayRefs(ctx context.Context, tx repository.Tx, id string, chargeID, sourceID *string, gatewayResponse json.RawMessage) error {
	if m.SetGatewayRefsFunc != nil {
		return m.SetGatewayRefsFunc(ctx, tx, id, chargeID, sourceID, gatewayResponse)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if chargeID != nil {
		p.GatewayChargeID = chargeID
	}
	if sourceID != nil {
		p.GatewaySourceID = sourceID
	}
	if len(gatewayResponse) > 0 {
		p.GatewayResponse = gatewayResponse
	}
	return nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) get(id string) *model.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.store[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (m *memPaymentRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// memSubscriptionRepo enforces the unique payment_id invariant the way the
// real storage layer does.
type memSubscriptionRepo struct {
	mu        sync.RWMutex
	byID      map[string]*model.Subscription
	byPayment map[string]*model.Subscription

	creates int // count of inserts that actually landed
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{
		byID:      make(map[string]*model.Subscription),
		byPayment: make(map[string]*model.Subscription),
	}
}

func (m *memSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, sub *model.Subscription) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byPayment[sub.PaymentID]; ok {
		cp := *existing
		return &cp, domain.ErrAlreadyExists
	}
	cp := *sub
	m.byID[sub.ID] = &cp
	m.byPayment[sub.PaymentID] = &cp
	m.creates++
	out := cp
	return &out, nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byPayment[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) FindActiveByMemberAndPlan(ctx context.Context, tx repository.Tx, memberID, planID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byID {
		if s.MemberID == memberID && s.PlanID == planID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) ListByMember(ctx context.Context, tx repository.Tx, memberID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.byID {
		if s.MemberID == memberID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	m.byPayment[s.PaymentID].Status = status
	return nil
}

type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{store: make(map[string]*model.Plan)}
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.store {
		if p.OwnerID == ownerID && p.DeletedAt == nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPlanRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.store {
		if p.DeletedAt == nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPlanRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

type memMemberRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Member
}

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{store: make(map[string]*model.Member)}
}

func (m *memMemberRepo) Save(ctx context.Context, tx repository.Tx, mem *model.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mem
	m.store[mem.ID] = &cp
	return nil
}

func (m *memMemberRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *memMemberRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.store {
		if mem.Email == email {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// MockPaymentGateway records calls and lets tests script responses.
type MockPaymentGateway struct {
	mu sync.Mutex

	CreateChargeFunc   func(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error)
	CreateSourceFunc   func(ctx context.Context, amountSatang int64, currency string) (*adapter.Source, error)
	RetrieveChargeFunc func(ctx context.Context, chargeID string) (*adapter.Charge, error)

	createChargeCalls   int
	createSourceCalls   int
	retrieveChargeCalls int
}

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	g.mu.Lock()
	g.createChargeCalls++
	g.mu.Unlock()
	if g.CreateChargeFunc != nil {
		return g.CreateChargeFunc(ctx, req)
	}
	// Source-based charges resolve asynchronously at the provider; only
	// captured card charges come back successful right away.
	if req.SourceID != "" {
		return &adapter.Charge{ID: "chrg_test_1", Status: "pending", SourceID: req.SourceID, Raw: json.RawMessage(`{"id":"chrg_test_1"}`)}, nil
	}
	return &adapter.Charge{ID: "chrg_test_1", Status: "successful", Raw: json.RawMessage(`{"id":"chrg_test_1"}`)}, nil
}

func (g *MockPaymentGateway) CreateSource(ctx context.Context, amountSatang int64, currency string) (*adapter.Source, error) {
	g.mu.Lock()
	g.createSourceCalls++
	g.mu.Unlock()
	if g.CreateSourceFunc != nil {
		return g.CreateSourceFunc(ctx, amountSatang, currency)
	}
	return &adapter.Source{
		ID:               "src_test_1",
		ScannableCodeURI: "https://example.com/qr.png",
		ExpiresAt:        time.Now().Add(10 * time.Minute),
	}, nil
}

func (g *MockPaymentGateway) RetrieveCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	g.mu.Lock()
	g.retrieveChargeCalls++
	g.mu.Unlock()
	if g.RetrieveChargeFunc != nil {
		return g.RetrieveChargeFunc(ctx, chargeID)
	}
	return &adapter.Charge{ID: chargeID, Status: "pending"}, nil
}

func (g *MockPaymentGateway) calls() (create, source, retrieve int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createChargeCalls, g.createSourceCalls, g.retrieveChargeCalls
}
