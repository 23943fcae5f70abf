package repository

import (
	"context"
	"encoding/json"
	"time"

	"saas-subscription-backend/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	ListByMember(ctx context.Context, tx Tx, memberID string, limit, offset int) ([]*model.Payment, error)

	// UpdateStatusForward applies a status transition only if it represents
	// forward progress per model.PaymentStatus.CanTransition. The WHERE
	// clause encodes the allowed transitions so an out-of-order webhook can
	// never regress a terminal status. Returns true when a row was updated.
	UpdateStatusForward(ctx context.Context, tx Tx, id string, next model.PaymentStatus, gatewayResponse json.RawMessage) (bool, error)

	// SetGatewayRefs stores provider charge/source identifiers after the
	// create-charge call returns.
	SetGatewayRefs(ctx context.Context, tx Tx, id string, chargeID, sourceID *string, gatewayResponse json.RawMessage) error

	// ListPendingOlderThan feeds the background reconciler.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
