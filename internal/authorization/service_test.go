package authorization

import (
	"context"
	"testing"

	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/smallbiznis/talentbay/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	return NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
}

func TestAuthorizeByProfileRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	admin := Actor{IdentityID: "u-admin", Role: profiledomain.RoleAdmin}
	freelancer := Actor{IdentityID: "u-free", Role: profiledomain.RoleFreelancer}
	client := Actor{IdentityID: "u-client", Role: profiledomain.RoleClient}

	require.NoError(t, svc.Authorize(ctx, admin, ObjectProfile, ActionProfileView))
	require.NoError(t, svc.Authorize(ctx, admin, ObjectProfile, ActionProfileList))
	require.NoError(t, svc.Authorize(ctx, freelancer, ObjectProfile, ActionProfileView))
	require.NoError(t, svc.Authorize(ctx, client, ObjectProfile, ActionProfileView))

	assert.ErrorIs(t, svc.Authorize(ctx, freelancer, ObjectProfile, ActionProfileList), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, client, ObjectProfile, ActionProfileList), ErrForbidden)
}

func TestAuthorizeWithoutProfileIsForbidden(t *testing.T) {
	svc := newTestService(t)

	err := svc.Authorize(context.Background(), Actor{IdentityID: "u-new"}, ObjectProfile, ActionProfileView)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeFollowsRoleChange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{IdentityID: "u-1", Role: profiledomain.RoleAdmin}, ObjectProfile, ActionProfileList))

	err := svc.Authorize(ctx, Actor{IdentityID: "u-1", Role: profiledomain.RoleClient}, ObjectProfile, ActionProfileList)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	actor := Actor{IdentityID: "u-1", Role: profiledomain.RoleAdmin}

	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Role: profiledomain.RoleAdmin}, ObjectProfile, ActionProfileView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, actor, " ", ActionProfileView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, actor, ObjectProfile, ""), ErrInvalidAction)
}

func TestNewEnforcerIsIdempotent(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	_, err = NewEnforcer(conn)
	require.NoError(t, err)
	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, 4)
}
