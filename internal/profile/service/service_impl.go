package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	maxHandleAttempts = 5
	maxPageSize       = 100
)

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
	genID *snowflake.Node
}

func New(log *zap.Logger, repo domain.Repository, clk clock.Clock, genID *snowflake.Node) domain.Service {
	return &Service{
		log:   log.Named("profile.service"),
		repo:  repo,
		clock: clk,
		genID: genID,
	}
}

// Create stores a new profile. Without an explicit handle one is derived from
// the display name, suffixed when the plain slug is taken.
func (s *Service) Create(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error) {
	identityID := strings.TrimSpace(req.IdentityID)
	displayName := strings.TrimSpace(req.DisplayName)
	if identityID == "" || displayName == "" {
		return nil, domain.ErrInvalidProfile
	}
	role, err := domain.ParseRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if err != nil {
		return nil, err
	}

	base := strings.TrimSpace(req.Handle)
	explicit := base != ""
	if !explicit {
		base = displayName
	}
	base = slug.Make(base)
	if base == "" || (explicit && !slug.IsSlug(req.Handle)) {
		return nil, domain.ErrInvalidHandle
	}

	skills := make([]string, 0, len(req.Skills))
	for _, skill := range req.Skills {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	contact := datatypes.JSONMap{}
	for k, v := range req.Contact {
		contact[k] = v
	}

	now := s.clock.Now().UTC()
	profile := &domain.Profile{
		IdentityID:      identityID,
		DisplayName:     displayName,
		Role:            role,
		Headline:        strings.TrimSpace(req.Headline),
		Skills:          datatypes.NewJSONSlice(skills),
		HourlyRateCents: req.HourlyRateCents,
		Currency:        strings.ToUpper(strings.TrimSpace(req.Currency)),
		AvatarURL:       strings.TrimSpace(req.AvatarURL),
		Contact:         contact,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 0; attempt < maxHandleAttempts; attempt++ {
		profile.ID = s.genID.Generate()
		profile.Handle = base
		if attempt > 0 {
			profile.Handle = fmt.Sprintf("%s-%d", base, attempt+1)
		}

		err := s.repo.Create(ctx, profile)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, domain.ErrHandleTaken) || explicit {
			return nil, err
		}
		s.log.Debug("handle taken, retrying", zap.String("handle", profile.Handle))
	}
	return nil, domain.ErrHandleTaken
}

func (s *Service) GetByHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	handle = strings.TrimSpace(handle)
	if !slug.IsSlug(handle) {
		return nil, domain.ErrNotFound
	}
	return s.repo.FindByHandle(ctx, handle)
}

func (s *Service) List(ctx context.Context, req domain.ListProfilesRequest) (*domain.ListProfilesResponse, error) {
	filter := domain.ListFilter{}
	if raw := strings.TrimSpace(req.Role); raw != "" {
		role, err := domain.ParseRole(strings.ToLower(raw))
		if err != nil {
			return nil, err
		}
		filter.Role = role
	}

	size := req.PageSize
	if size <= 0 {
		size = 20
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	profiles, info, err := s.repo.List(ctx, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  size,
	})
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []*domain.Profile{}
	}
	return &domain.ListProfilesResponse{PageInfo: *info, Profiles: profiles}, nil
}
