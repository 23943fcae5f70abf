package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, member_id, plan_id, amount, currency, method, status, gateway_charge_id, gateway_source_id, gateway_response, description, metadata, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  gateway_charge_id=EXCLUDED.gateway_charge_id,
  gateway_source_id=EXCLUDED.gateway_source_id,
  gateway_response=EXCLUDED.gateway_response,
  metadata=EXCLUDED.metadata,
  updated_at=EXCLUDED.updated_at;`
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.MemberID, p.PlanID, p.Amount, p.Currency, string(p.Method), string(p.Status),
		p.GatewayChargeID, p.GatewaySourceID, []byte(p.GatewayResponse), p.Description, meta,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var method, status string
	var response, meta []byte
	if err := row.Scan(&p.ID, &p.MemberID, &p.PlanID, &p.Amount, &p.Currency, &method, &status,
		&p.GatewayChargeID, &p.GatewaySourceID, &response, &p.Description, &meta,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	p.GatewayResponse = json.RawMessage(response)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByMember(ctx context.Context, tx repository.Tx, memberID string, limit, offset int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE member_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, memberID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatusForward applies the transition only when it is forward
// progress: pending may move anywhere, successful only to refunded. The
// guard lives in the WHERE clause so concurrent writers and out-of-order
// webhooks cannot regress a terminal status.
func (r *paymentRepo) UpdateStatusForward(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, gatewayResponse json.RawMessage) (bool, error) {
	const q = `
UPDATE payments
SET status=$2, gateway_response=COALESCE($3, gateway_response), updated_at=NOW()
WHERE id=$1 AND status <> $2
  AND (status='pending' OR (status='successful' AND $2='refunded'));`
	var resp interface{}
	if len(gatewayResponse) > 0 {
		resp = []byte(gatewayResponse)
	}
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(next), resp)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *paymentRepo) SetGatewayRefs(ctx context.Context, tx repository.Tx, id string, chargeID, sourceID *string, gatewayResponse json.RawMessage) error {
	const q = `
UPDATE payments
SET gateway_charge_id=COALESCE($2, gateway_charge_id),
    gateway_source_id=COALESCE($3, gateway_source_id),
    gateway_response=COALESCE($4, gateway_response),
    updated_at=NOW()
WHERE id=$1;`
	var resp interface{}
	if len(gatewayResponse) > 0 {
		resp = []byte(gatewayResponse)
	}
	if _, err := execSQL(ctx, r.pool, tx, q, id, chargeID, sourceID, resp); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
