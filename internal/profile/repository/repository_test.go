package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/pkg/db"
	"github.com/smallbiznis/talentbay/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (domain.Repository, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Profile{}))
	return New(conn), conn
}

func newProfile(node *snowflake.Node, identityID, handle string, role domain.Role) *domain.Profile {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Profile{
		ID:          node.Generate(),
		IdentityID:  identityID,
		Handle:      handle,
		DisplayName: handle,
		Role:        role,
		Skills:      datatypes.NewJSONSlice([]string{"go", "sql"}),
		Contact:     datatypes.JSONMap{"site": "https://example.com"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestFindProfileByIdentityAbsentIsNotAnError(t *testing.T) {
	repo, _ := newTestRepo(t)

	profile, err := repo.FindProfileByIdentity(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestFindProfileByIdentityRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	node, _ := snowflake.NewNode(1)
	ctx := context.Background()

	want := newProfile(node, "u1", "ana-lima", domain.RoleFreelancer)
	require.NoError(t, repo.Create(ctx, want))

	got, err := repo.FindProfileByIdentity(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.Equal(got), "stored profile should read back unchanged")
	assert.Equal(t, []string{"go", "sql"}, []string(got.Skills))
}

func TestFindProfileByIdentityWrapsStorageFailure(t *testing.T) {
	repo, conn := newTestRepo(t)
	require.NoError(t, conn.Migrator().DropTable(&domain.Profile{}))

	_, err := repo.FindProfileByIdentity(context.Background(), "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProfileLookup)
}

func TestFindByHandle(t *testing.T) {
	repo, _ := newTestRepo(t)
	node, _ := snowflake.NewNode(1)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newProfile(node, "u1", "ana-lima", domain.RoleFreelancer)))

	got, err := repo.FindByHandle(ctx, "ana-lima")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.IdentityID)

	_, err = repo.FindByHandle(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateDistinguishesDuplicateKinds(t *testing.T) {
	repo, _ := newTestRepo(t)
	node, _ := snowflake.NewNode(1)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newProfile(node, "u1", "ana", domain.RoleClient)))

	err := repo.Create(ctx, newProfile(node, "u1", "ana-2", domain.RoleClient))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = repo.Create(ctx, newProfile(node, "u2", "ana", domain.RoleClient))
	assert.ErrorIs(t, err, domain.ErrHandleTaken)
}

func TestListPagesByCursor(t *testing.T) {
	repo, _ := newTestRepo(t)
	node, _ := snowflake.NewNode(1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		role := domain.RoleFreelancer
		if i%2 == 1 {
			role = domain.RoleClient
		}
		require.NoError(t, repo.Create(ctx, newProfile(node, fmt.Sprintf("u%d", i), fmt.Sprintf("h%d", i), role)))
	}

	first, info, err := repo.List(ctx, domain.ListFilter{}, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "h4", first[0].Handle)

	second, info, err := repo.List(ctx, domain.ListFilter{}, pagination.Pagination{PageSize: 2, PageToken: info.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "h2", second[0].Handle)

	freelancers, _, err := repo.List(ctx, domain.ListFilter{Role: domain.RoleFreelancer}, pagination.Pagination{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, freelancers, 3)
}

func TestListRejectsBadToken(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, _, err := repo.List(context.Background(), domain.ListFilter{}, pagination.Pagination{PageToken: "!!"})
	assert.Error(t, err)
}
