package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, member_id, plan_id, payment_id, status, start_date, end_date, created_at, updated_at`

// Create inserts the subscription. The UNIQUE constraint on payment_id is
// the correctness backstop against racing reconciliation paths: two writers
// can both pass the application-level existence check, but only one insert
// lands. The loser gets the winner's row back with ErrAlreadyExists.
func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, sub *model.Subscription) (*model.Subscription, error) {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (payment_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		sub.ID, sub.MemberID, sub.PlanID, sub.PaymentID, string(sub.Status),
		sub.StartDate, sub.EndDate, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, ferr := r.FindByPaymentID(ctx, tx, sub.PaymentID)
			if ferr != nil {
				return nil, ferr
			}
			return existing, domain.ErrAlreadyExists
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		existing, ferr := r.FindByPaymentID(ctx, tx, sub.PaymentID)
		if ferr != nil {
			return nil, ferr
		}
		return existing, domain.ErrAlreadyExists
	}
	return sub, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.MemberID, &s.PlanID, &s.PaymentID, &status,
		&s.StartDate, &s.EndDate, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE payment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindActiveByMemberAndPlan(ctx context.Context, tx repository.Tx, memberID, planID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions
WHERE member_id=$1 AND plan_id=$2 AND status='active' AND end_date > NOW()
ORDER BY end_date DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, memberID, planID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ListByMember(ctx context.Context, tx repository.Tx, memberID string) ([]*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE member_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	const q = `UPDATE subscriptions SET status=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
