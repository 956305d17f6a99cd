package domain

import (
	"context"

	"github.com/smallbiznis/talentbay/pkg/db/pagination"
)

type CreateProfileRequest struct {
	IdentityID      string
	DisplayName     string
	Role            string
	Handle          string
	Headline        string
	Skills          []string
	HourlyRateCents int64
	Currency        string
	AvatarURL       string
	Contact         map[string]any
}

type ListProfilesRequest struct {
	Role      string
	PageToken string
	PageSize  int
}

type ListProfilesResponse struct {
	pagination.PageInfo
	Profiles []*Profile `json:"profiles"`
}

type Service interface {
	Create(ctx context.Context, req CreateProfileRequest) (*Profile, error)
	GetByHandle(ctx context.Context, handle string) (*Profile, error)
	List(ctx context.Context, req ListProfilesRequest) (*ListProfilesResponse, error)
}
