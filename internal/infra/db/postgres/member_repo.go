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

var _ repository.MemberRepository = (*memberRepo)(nil)

type memberRepo struct{ pool *pgxpool.Pool }

func NewMemberRepo(pool *pgxpool.Pool) *memberRepo {
	return &memberRepo{pool: pool}
}

const memberColumns = `id, email, full_name, phone, created_at, updated_at`

func (r *memberRepo) Save(ctx context.Context, tx repository.Tx, m *model.Member) error {
	const q = `
INSERT INTO members (` + memberColumns + `)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  email=EXCLUDED.email,
  full_name=EXCLUDED.full_name,
  phone=EXCLUDED.phone,
  updated_at=EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.Email, m.FullName, m.Phone, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanMember(row pgx.Row) (*model.Member, error) {
	m := &model.Member{}
	if err := row.Scan(&m.ID, &m.Email, &m.FullName, &m.Phone, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

func (r *memberRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanMember(row)
}

func (r *memberRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE email=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, email)
	if err != nil {
		return nil, err
	}
	return scanMember(row)
}
