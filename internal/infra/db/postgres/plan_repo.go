package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, owner_id, name, description, price_satang, duration_days, created_at, updated_at, deleted_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (` + planColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name,
  description=EXCLUDED.description,
  price_satang=EXCLUDED.price_satang,
  duration_days=EXCLUDED.duration_days,
  updated_at=EXCLUDED.updated_at,
  deleted_at=EXCLUDED.deleted_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OwnerID, p.Name, p.Description, p.PriceSatang, p.DurationDays,
		p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.PriceSatang,
		&p.DurationDays, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// FindByID returns soft-deleted plans too; the caller decides whether a
// deleted plan is acceptable (reconciliation) or not (purchase).
func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM plans WHERE owner_id=$1 AND deleted_at IS NULL ORDER BY created_at;`
	return r.list(ctx, tx, q, ownerID)
}

func (r *planRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM plans WHERE deleted_at IS NULL ORDER BY created_at;`
	return r.list(ctx, tx, q)
}

func (r *planRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *planRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE plans SET deleted_at=NOW(), updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
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
