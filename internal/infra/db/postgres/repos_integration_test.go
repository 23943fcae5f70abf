//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
)

// These tests need a real database because the invariants under test live
// in SQL: the forward-only WHERE clause and the payment_id unique index.
// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./...

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPgxPool(ctx, url, 4)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "..", "migrations", "0001_init.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	for _, table := range []string{"subscriptions", "payments", "plans", "members"} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return pool
}

func seedPurchase(t *testing.T, pool *pgxpool.Pool) (*model.Member, *model.Plan, *model.Payment) {
	t.Helper()
	ctx := context.Background()

	member, err := model.NewMember("it@example.com", "Integration Tester", "")
	if err != nil {
		t.Fatalf("NewMember: %v", err)
	}
	if err := NewMemberRepo(pool).Save(ctx, nil, member); err != nil {
		t.Fatalf("save member: %v", err)
	}
	plan, err := model.NewPlan("org-1", "Pro", "", 49900, 30)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if err := NewPlanRepo(pool).Save(ctx, nil, plan); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	payment, err := model.NewPayment(member, plan, model.PaymentMethodPromptPay)
	if err != nil {
		t.Fatalf("NewPayment: %v", err)
	}
	if err := NewPaymentRepo(pool).Save(ctx, nil, payment); err != nil {
		t.Fatalf("save payment: %v", err)
	}
	return member, plan, payment
}

func TestUpdateStatusForward_SQLGuard(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewPaymentRepo(pool)
	_, _, payment := seedPurchase(t, pool)

	ok, err := repo.UpdateStatusForward(ctx, nil, payment.ID, model.PaymentStatusSuccessful, nil)
	if err != nil || !ok {
		t.Fatalf("pending -> successful: ok=%v err=%v", ok, err)
	}

	// A late pending webhook must not regress the terminal status.
	ok, err = repo.UpdateStatusForward(ctx, nil, payment.ID, model.PaymentStatusPending, nil)
	if err != nil {
		t.Fatalf("regress attempt: %v", err)
	}
	if ok {
		t.Error("successful -> pending must not land")
	}
	ok, err = repo.UpdateStatusForward(ctx, nil, payment.ID, model.PaymentStatusFailed, nil)
	if err != nil {
		t.Fatalf("failed attempt: %v", err)
	}
	if ok {
		t.Error("successful -> failed must not land")
	}

	// The one allowed move out of successful.
	ok, err = repo.UpdateStatusForward(ctx, nil, payment.ID, model.PaymentStatusRefunded, nil)
	if err != nil || !ok {
		t.Fatalf("successful -> refunded: ok=%v err=%v", ok, err)
	}
	got, err := repo.FindByID(ctx, nil, payment.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != model.PaymentStatusRefunded {
		t.Errorf("status = %s, want refunded", got.Status)
	}
}

func TestSubscriptionCreate_UniquePaymentBackstop(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	subRepo := NewSubscriptionRepo(pool)
	_, plan, payment := seedPurchase(t, pool)

	if ok, err := NewPaymentRepo(pool).UpdateStatusForward(ctx, nil, payment.ID, model.PaymentStatusSuccessful, nil); err != nil || !ok {
		t.Fatalf("mark successful: ok=%v err=%v", ok, err)
	}

	first, err := model.NewSubscription(payment.MemberID, plan.ID, payment.ID, plan, time.Now())
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	created, err := subRepo.Create(ctx, nil, first)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	second, err := model.NewSubscription(payment.MemberID, plan.ID, payment.ID, plan, time.Now())
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	got, err := subRepo.Create(ctx, nil, second)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}
	if got.ID != created.ID {
		t.Errorf("loser got row %s, want winner's %s", got.ID, created.ID)
	}
}

func TestFindActiveByMemberAndPlan(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	subRepo := NewSubscriptionRepo(pool)
	member, plan, payment := seedPurchase(t, pool)

	if _, err := subRepo.FindActiveByMemberAndPlan(ctx, nil, member.ID, plan.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty lookup err = %v, want ErrNotFound", err)
	}

	sub, err := model.NewSubscription(member.ID, plan.ID, payment.ID, plan, time.Now())
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	if _, err := subRepo.Create(ctx, nil, sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := subRepo.FindActiveByMemberAndPlan(ctx, nil, member.ID, plan.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.PaymentID != payment.ID {
		t.Errorf("payment id = %s, want %s", got.PaymentID, payment.ID)
	}

	// Cancelled subscriptions no longer block a repurchase.
	if err := subRepo.UpdateStatus(ctx, nil, sub.ID, model.SubscriptionStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := subRepo.FindActiveByMemberAndPlan(ctx, nil, member.ID, plan.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("post-cancel lookup err = %v, want ErrNotFound", err)
	}
}

func TestPaymentRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewPaymentRepo(pool)
	_, _, payment := seedPurchase(t, pool)

	chargeID := "chrg_it_1"
	if err := repo.SetGatewayRefs(ctx, nil, payment.ID, &chargeID, nil, []byte(`{"id":"chrg_it_1"}`)); err != nil {
		t.Fatalf("SetGatewayRefs: %v", err)
	}

	got, err := repo.FindByID(ctx, nil, payment.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.GatewayChargeID == nil || *got.GatewayChargeID != chargeID {
		t.Errorf("charge id = %v, want %s", got.GatewayChargeID, chargeID)
	}
	if got.Metadata["payment_id"] != payment.ID {
		t.Errorf("metadata payment_id = %q, want %q", got.Metadata["payment_id"], payment.ID)
	}
	if got.Amount != payment.Amount {
		t.Errorf("amount = %d, want %d", got.Amount, payment.Amount)
	}
}
