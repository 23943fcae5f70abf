package usecase

import (
	"context"
	"errors"

	"saas-subscription-backend/internal/domain"
	"saas-subscription-backend/internal/domain/model"
	"saas-subscription-backend/internal/domain/ports/repository"
)

var _ MemberUseCase = (*memberUC)(nil)

type MemberUseCase interface {
	Register(ctx context.Context, email, fullName, phone string) (*model.Member, error)
	Get(ctx context.Context, id string) (*model.Member, error)
}

type memberUC struct {
	members repository.MemberRepository
}

func NewMemberUseCase(members repository.MemberRepository) *memberUC {
	return &memberUC{members: members}
}

func (u *memberUC) Register(ctx context.Context, email, fullName, phone string) (*model.Member, error) {
	if _, err := u.members.FindByEmail(ctx, nil, email); err == nil {
		return nil, domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	m, err := model.NewMember(email, fullName, phone)
	if err != nil {
		return nil, err
	}
	if err := u.members.Save(ctx, nil, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (u *memberUC) Get(ctx context.Context, id string) (*model.Member, error) {
	return u.members.FindByID(ctx, nil, id)
}
