package domain

import (
	"context"

	"github.com/smallbiznis/talentbay/pkg/db/pagination"
)

//go:generate mockgen -source=repository.go -destination=../mocks/mock_repository.go -package=mocks

type Repository interface {
	// FindProfileByIdentity returns (nil, nil) when the identity has no
	// profile yet. Storage failures wrap ErrProfileLookup.
	FindProfileByIdentity(ctx context.Context, identityID string) (*Profile, error)
	FindByHandle(ctx context.Context, handle string) (*Profile, error)
	List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]*Profile, *pagination.PageInfo, error)
	Create(ctx context.Context, profile *Profile) error
}

type ListFilter struct {
	Role Role
}
