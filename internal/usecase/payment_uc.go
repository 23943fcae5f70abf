package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/adapter"
	"saas-subscription-backend/internal/domain/ports/repository"
	"saas-subscription-backend/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Dedup suppresses repeated webhook deliveries. Implemented by cache.DedupCache.
type Dedup interface {
	Seen(key string) bool
}

// WebhookEvent is the provider event envelope after decoding.
type WebhookEvent struct {
	Key      string // event type, e.g. "charge.complete"
	ChargeID string
	Status   string // provider vocabulary
	Metadata map[string]string
	Raw      json.RawMessage
}

// WebhookOutcome reports what reconciliation did with an event. The webhook
// endpoint acks with 200 for every outcome; the distinction is internal.
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookSkipped   WebhookOutcome = "skipped"
)

// PollOutcome distinguishes a conclusive poll from an inconclusive one.
// Timeout is not a payment failure: the charge may still clear later.
type PollOutcome string

const (
	PollSuccessful PollOutcome = "successful"
	PollFailed     PollOutcome = "failed"
	PollExpired    PollOutcome = "expired"
	PollTimeout    PollOutcome = "timeout"
)

type PollResult struct {
	Outcome PollOutcome
	Payment *model.Payment
}

// InitiateResult carries the payment summary plus, for promptpay, the
// scannable code the payer needs and its expiry.
type InitiateResult struct {
	Payment   *model.Payment
	QRCodeURI string
	ExpiresAt *time.Time
}

// HistoryItem links a payment to the subscription it granted, if any.
type HistoryItem struct {
	Payment      *model.Payment
	Subscription *model.Subscription
}

type PaymentUseCase interface {
	// Initiate runs the full purchase flow: validate, create a pending
	// payment, charge the gateway, and (for synchronously resolved charges)
	// activate the subscription.
	Initiate(ctx context.Context, memberID, planID string, method model.PaymentMethod, sourceToken string) (*InitiateResult, error)
	GetStatus(ctx context.Context, paymentID string) (*model.Payment, error)
	History(ctx context.Context, memberID string, limit, offset int) ([]*HistoryItem, error)
	// ReconcileWebhook applies a provider event to the local payment. It is
	// the only path that moves a promptpay payment out of pending.
	ReconcileWebhook(ctx context.Context, ev WebhookEvent) (WebhookOutcome, error)
	// CreateSubscriptionFromPayment is idempotent: racing callers all get
	// the same single subscription row back.
	CreateSubscriptionFromPayment(ctx context.Context, paymentID string) (*model.Subscription, error)
	// Poll waits (bounded, cancellable) for the payment to reach a terminal
	// status, requerying the gateway every few attempts in case a webhook
	// was dropped.
	Poll(ctx context.Context, paymentID string, maxAttempts int, interval time.Duration) (*PollResult, error)
	// Refresh requeries the gateway once and reconciles any disagreement
	// with the stored status. Used by the background reconciler.
	Refresh(ctx context.Context, paymentID string) (*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	members  repository.MemberRepository
	txm      repository.TransactionManager // nil disables the transactional path
	gateway  adapter.PaymentGateway
	dedup    Dedup

	minPromptPaySatang int64
	gatewayCheckEvery  int

	log *zerolog.Logger
	now func() time.Time
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	members repository.MemberRepository,
	txm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	dedup Dedup,
	minPromptPaySatang int64,
	gatewayCheckEvery int,
	logger *zerolog.Logger,
) *paymentUC {
	if minPromptPaySatang <= 0 {
		minPromptPaySatang = 2000
	}
	if gatewayCheckEvery <= 0 {
		gatewayCheckEvery = 5
	}
	return &paymentUC{
		payments:           payments,
		subs:               subs,
		plans:              plans,
		members:            members,
		txm:                txm,
		gateway:            gateway,
		dedup:              dedup,
		minPromptPaySatang: minPromptPaySatang,
		gatewayCheckEvery:  gatewayCheckEvery,
		log:                logger,
		now:                time.Now,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, memberID, planID string, method model.PaymentMethod, sourceToken string) (*InitiateResult, error) {
	member, err := u.members.FindByID(ctx, nil, memberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	plan, err := u.plans.FindByID(ctx, nil, planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	if plan.Deleted() {
		return nil, domain.ErrPlanNotFound
	}

	switch method {
	case model.PaymentMethodCard:
		if sourceToken == "" {
			return nil, domain.ErrMissingPaymentSource
		}
	case model.PaymentMethodPromptPay:
		// Provider rejects transfers below the minimum; fail before any
		// gateway call is made.
		if plan.PriceSatang < u.minPromptPaySatang {
			return nil, domain.ErrAmountBelowMinimum
		}
	default:
		return nil, domain.ErrInvalidPaymentMethod
	}

	// Do not charge for a redundant subscription.
	if existing, err := u.subs.FindActiveByMemberAndPlan(ctx, nil, memberID, planID); err == nil && existing.Active(u.now()) {
		return nil, domain.ErrDuplicateActiveSubscription
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p, err := model.NewPayment(member, plan, method)
	if err != nil {
		return nil, err
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	res := &InitiateResult{Payment: p}
	var charge *adapter.Charge
	switch method {
	case model.PaymentMethodCard:
		charge, err = u.gateway.CreateCharge(ctx, adapter.ChargeRequest{
			AmountSatang: p.Amount,
			Currency:     p.Currency,
			Description:  p.Description,
			SourceToken:  sourceToken,
			Capture:      true,
			Metadata:     p.Metadata,
		})
	case model.PaymentMethodPromptPay:
		var src *adapter.Source
		src, err = u.gateway.CreateSource(ctx, p.Amount, p.Currency)
		if err == nil {
			res.QRCodeURI = src.ScannableCodeURI
			expires := src.ExpiresAt
			res.ExpiresAt = &expires
			charge, err = u.gateway.CreateCharge(ctx, adapter.ChargeRequest{
				AmountSatang: p.Amount,
				Currency:     p.Currency,
				Description:  p.Description,
				SourceID:     src.ID,
				Capture:      false,
				Metadata:     p.Metadata,
			})
		}
	}
	if err != nil {
		u.markGatewayFailure(ctx, p, err)
		return nil, fmt.Errorf("create charge: %w", err)
	}

	chargeID := charge.ID
	var sourceID *string
	if charge.SourceID != "" {
		sid := charge.SourceID
		sourceID = &sid
	}
	if err := u.payments.SetGatewayRefs(ctx, nil, p.ID, &chargeID, sourceID, charge.Raw); err != nil {
		// The charge already exists at the provider; bailing out here would
		// strand a charged member on a pending row the reconciler cannot
		// requery. Keep going with the charge object in hand.
		u.log.Error().Err(err).Str("payment_id", p.ID).Str("charge_id", chargeID).
			Msg("failed to persist gateway refs, continuing with status reconciliation")
	}
	p.GatewayChargeID = &chargeID
	p.GatewaySourceID = sourceID
	p.GatewayResponse = charge.Raw

	mapped, known := model.StatusFromGateway(charge.Status)
	if !known {
		u.log.Warn().Str("payment_id", p.ID).Str("gateway_status", charge.Status).
			Msg("unrecognized gateway status, keeping payment pending")
	}
	if mapped != model.PaymentStatusPending {
		if _, err := u.payments.UpdateStatusForward(ctx, nil, p.ID, mapped, charge.Raw); err != nil {
			return nil, err
		}
		p.Status = mapped
		metrics.IncPayment(string(mapped))
	}
	if mapped == model.PaymentStatusSuccessful {
		if _, err := u.CreateSubscriptionFromPayment(ctx, p.ID); err != nil {
			return nil, err
		}
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
	}
	return res, nil
}

// markGatewayFailure records a gateway call failure on the payment row.
// The original error still propagates to the caller.
func (u *paymentUC) markGatewayFailure(ctx context.Context, p *model.Payment, cause error) {
	raw, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if _, err := u.payments.UpdateStatusForward(ctx, nil, p.ID, model.PaymentStatusFailed, raw); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to mark payment failed")
		return
	}
	p.Status = model.PaymentStatusFailed
	metrics.IncPayment(string(model.PaymentStatusFailed))
}

func (u *paymentUC) GetStatus(ctx context.Context, paymentID string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, nil, paymentID)
}

func (u *paymentUC) History(ctx context.Context, memberID string, limit, offset int) ([]*HistoryItem, error) {
	payments, err := u.payments.ListByMember(ctx, nil, memberID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]*HistoryItem, 0, len(payments))
	for _, p := range payments {
		item := &HistoryItem{Payment: p}
		if sub, err := u.subs.FindByPaymentID(ctx, nil, p.ID); err == nil {
			item.Subscription = sub
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// DedupKey is stable across provider redeliveries of the same event.
func (ev WebhookEvent) DedupKey() string {
	return ev.Key + "|" + ev.ChargeID + "|" + ev.Status
}

func (u *paymentUC) ReconcileWebhook(ctx context.Context, ev WebhookEvent) (WebhookOutcome, error) {
	if u.dedup.Seen(ev.DedupKey()) {
		metrics.IncWebhook(string(WebhookDuplicate))
		return WebhookDuplicate, nil
	}

	paymentID := ev.Metadata["payment_id"]
	if paymentID == "" {
		// Metadata wiring defect or foreign event; ack and count, never
		// bounce it back to the provider for retry.
		u.log.Warn().Str("charge_id", ev.ChargeID).Str("event", ev.Key).
			Msg("webhook without payment_id metadata, skipping")
		metrics.IncWebhook(string(WebhookSkipped))
		return WebhookSkipped, nil
	}
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("payment_id", paymentID).Str("charge_id", ev.ChargeID).
				Msg("webhook for unknown payment, skipping")
			metrics.IncWebhook(string(WebhookSkipped))
			return WebhookSkipped, nil
		}
		return WebhookSkipped, err
	}

	mapped, known := model.StatusFromGateway(ev.Status)
	if !known {
		u.log.Warn().Str("payment_id", p.ID).Str("gateway_status", ev.Status).
			Msg("unrecognized gateway status in webhook")
	}
	updated, err := u.payments.UpdateStatusForward(ctx, nil, p.ID, mapped, ev.Raw)
	if err != nil {
		return WebhookSkipped, err
	}
	if updated {
		metrics.IncPayment(string(mapped))
	}
	if mapped == model.PaymentStatusSuccessful {
		if _, err := u.CreateSubscriptionFromPayment(ctx, p.ID); err != nil {
			return WebhookSkipped, err
		}
		if updated {
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
		}
	}
	metrics.IncWebhook(string(WebhookProcessed))
	return WebhookProcessed, nil
}

func (u *paymentUC) CreateSubscriptionFromPayment(ctx context.Context, paymentID string) (*model.Subscription, error) {
	if u.txm == nil {
		return u.createSubscription(ctx, nil, paymentID)
	}
	// Inside a transaction FindByID locks the payment row, serializing
	// racing reconcilers before they even reach the unique constraint.
	var sub *model.Subscription
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sub, err = u.createSubscription(ctx, tx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (u *paymentUC) createSubscription(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	p, err := u.payments.FindByID(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusSuccessful {
		return nil, fmt.Errorf("payment %s is %s, not successful: %w", p.ID, p.Status, domain.ErrInvalidArgument)
	}
	// Fast path: another reconciliation path already created it.
	if existing, err := u.subs.FindByPaymentID(ctx, tx, p.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	plan, err := u.plans.FindByID(ctx, tx, p.PlanID)
	if err != nil {
		return nil, err
	}
	sub, err := model.NewSubscription(p.MemberID, p.PlanID, p.ID, plan, u.now())
	if err != nil {
		return nil, err
	}
	created, err := u.subs.Create(ctx, tx, sub)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race; the unique payment_id constraint is the backstop
		// and Create returned the winner's row.
		return created, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.IncSubscription(string(model.SubscriptionStatusActive))
	return created, nil
}

func (u *paymentUC) Poll(ctx context.Context, paymentID string, maxAttempts int, interval time.Duration) (*PollResult, error) {
	if maxAttempts <= 0 || interval <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	var p *model.Payment
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		p, err = u.payments.FindByID(ctx, nil, paymentID)
		if err != nil {
			return nil, err
		}

		if p.Status == model.PaymentStatusPending && attempt%u.gatewayCheckEvery == 0 && p.GatewayChargeID != nil {
			// A webhook may have been dropped; ask the provider directly
			// and funnel the answer through the same guarded transition.
			if refreshed, err := u.refreshFromGateway(ctx, p); err != nil {
				u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("gateway requery failed during poll")
			} else {
				p = refreshed
			}
		}

		switch p.Status {
		case model.PaymentStatusSuccessful:
			metrics.IncPoll(string(PollSuccessful))
			return &PollResult{Outcome: PollSuccessful, Payment: p}, nil
		case model.PaymentStatusFailed, model.PaymentStatusRefunded:
			metrics.IncPoll(string(PollFailed))
			return &PollResult{Outcome: PollFailed, Payment: p}, nil
		case model.PaymentStatusExpired:
			metrics.IncPoll(string(PollExpired))
			return &PollResult{Outcome: PollExpired, Payment: p}, nil
		}

		if attempt == maxAttempts {
			break
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	metrics.IncPoll(string(PollTimeout))
	return &PollResult{Outcome: PollTimeout, Payment: p}, nil
}

func (u *paymentUC) Refresh(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.GatewayChargeID == nil {
		// Never reached the gateway; nothing to reconcile against.
		return p, nil
	}
	return u.refreshFromGateway(ctx, p)
}

// refreshFromGateway pulls the charge from the provider and reconciles any
// disagreement with the stored status.
func (u *paymentUC) refreshFromGateway(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	charge, err := u.gateway.RetrieveCharge(ctx, *p.GatewayChargeID)
	if err != nil {
		return nil, err
	}
	mapped, known := model.StatusFromGateway(charge.Status)
	if !known {
		u.log.Warn().Str("payment_id", p.ID).Str("gateway_status", charge.Status).
			Msg("unrecognized gateway status from requery")
	}
	if mapped == p.Status {
		return p, nil
	}
	updated, err := u.payments.UpdateStatusForward(ctx, nil, p.ID, mapped, charge.Raw)
	if err != nil {
		return nil, err
	}
	if updated {
		metrics.IncPayment(string(mapped))
		if mapped == model.PaymentStatusSuccessful {
			if _, err := u.CreateSubscriptionFromPayment(ctx, p.ID); err != nil {
				return nil, err
			}
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
		}
	}
	return u.payments.FindByID(ctx, nil, p.ID)
}
