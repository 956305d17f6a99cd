package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/talentbay/internal/clock"
	"github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/internal/profile/mocks"
	"github.com/smallbiznis/talentbay/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *mocks.MockRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	return New(zap.NewNop(), repo, clk, node), repo
}

func TestCreateDerivesHandleFromDisplayName(t *testing.T) {
	svc, repo := newTestService(t)

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	profile, err := svc.Create(context.Background(), domain.CreateProfileRequest{
		IdentityID:  "u1",
		DisplayName: "Ana Lima",
		Role:        "Freelancer",
		Skills:      []string{" go ", "", "postgres"},
		Currency:    "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana-lima", profile.Handle)
	assert.Equal(t, domain.RoleFreelancer, profile.Role)
	assert.Equal(t, []string{"go", "postgres"}, []string(profile.Skills))
	assert.Equal(t, "USD", profile.Currency)
}

func TestCreateSuffixesTakenHandle(t *testing.T) {
	svc, repo := newTestService(t)

	var handles []string
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *domain.Profile) error {
		handles = append(handles, p.Handle)
		if len(handles) < 3 {
			return domain.ErrHandleTaken
		}
		return nil
	}).Times(3)

	profile, err := svc.Create(context.Background(), domain.CreateProfileRequest{
		IdentityID:  "u1",
		DisplayName: "Ana Lima",
		Role:        "client",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ana-lima", "ana-lima-2", "ana-lima-3"}, handles)
	assert.Equal(t, "ana-lima-3", profile.Handle)
}

func TestCreateExplicitHandleIsNotSuffixed(t *testing.T) {
	svc, repo := newTestService(t)

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domain.ErrHandleTaken)

	_, err := svc.Create(context.Background(), domain.CreateProfileRequest{
		IdentityID:  "u1",
		DisplayName: "Ana",
		Handle:      "ana",
		Role:        "client",
	})
	assert.ErrorIs(t, err, domain.ErrHandleTaken)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateProfileRequest{IdentityID: "u1", DisplayName: "Ana", Role: "owner"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = svc.Create(ctx, domain.CreateProfileRequest{DisplayName: "Ana", Role: "client"})
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)

	_, err = svc.Create(ctx, domain.CreateProfileRequest{IdentityID: "u1", DisplayName: "Ana", Handle: "Not A Slug", Role: "client"})
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)
}

func TestListClampsPageSizeAndParsesRole(t *testing.T) {
	svc, repo := newTestService(t)

	repo.EXPECT().
		List(gomock.Any(), domain.ListFilter{Role: domain.RoleAdmin}, pagination.Pagination{PageSize: 100}).
		Return(nil, &pagination.PageInfo{}, nil)

	resp, err := svc.List(context.Background(), domain.ListProfilesRequest{Role: "ADMIN", PageSize: 1000})
	require.NoError(t, err)
	assert.NotNil(t, resp.Profiles)
	assert.Empty(t, resp.Profiles)
}

func TestListPropagatesLookupFailure(t *testing.T) {
	svc, repo := newTestService(t)

	repo.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil, errors.Join(domain.ErrProfileLookup, errors.New("db down")))

	_, err := svc.List(context.Background(), domain.ListProfilesRequest{})
	assert.ErrorIs(t, err, domain.ErrProfileLookup)
}

func TestGetByHandleRejectsNonSlug(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByHandle(context.Background(), "../etc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
