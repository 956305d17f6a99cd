package routeguard

import (
	"testing"
	"time"

	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	"github.com/smallbiznis/talentbay/internal/authsession"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := New(Config{
		SignInPath:            "/signin",
		IncompleteProfilePath: "/onboarding/role",
		RoleHomePaths: map[profiledomain.Role]string{
			profiledomain.RoleAdmin:      "/admin",
			profiledomain.RoleFreelancer: "/dashboard/freelancer",
			profiledomain.RoleClient:     "/dashboard/client",
		},
	})
	require.NoError(t, err)
	return g
}

func signedIn(role profiledomain.Role) authsession.View {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view := authsession.View{
		Identity: &authdomain.Identity{
			ID:        "u-1",
			Email:     "u1@example.com",
			SessionID: "s-1",
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		},
		Status: authsession.StatusReady,
	}
	if role != "" {
		view.Profile = &profiledomain.Profile{IdentityID: "u-1", Handle: "u-1", Role: role}
	}
	return view
}

func TestDecideHoldsWhileInitializing(t *testing.T) {
	g := testGuard(t)
	initializing := authsession.View{Status: authsession.StatusInitializing}

	for _, req := range []Requirement{None(), Authenticated(), Role(profiledomain.RoleAdmin)} {
		assert.Equal(t, Hold(), g.Decide(initializing, req, "/admin"), req.String())
	}
}

func TestDecideTable(t *testing.T) {
	g := testGuard(t)
	signedOut := authsession.View{Status: authsession.StatusReady}
	failed := authsession.View{Status: authsession.StatusError}

	cases := []struct {
		name string
		view authsession.View
		req  Requirement
		path string
		want Decision
	}{
		{"public page signed out", signedOut, None(), "/", Allow()},
		{"public page after read failure", failed, None(), "/", Allow()},
		{"signed out needs sign in", signedOut, Authenticated(), "/messages", Redirect("/signin?next=%2Fmessages")},
		{"read failure treated as signed out", failed, Authenticated(), "/messages", Redirect("/signin?next=%2Fmessages")},
		{"query string kept in return path", signedOut, Role(profiledomain.RoleAdmin), "/admin/users?page=2", Redirect("/signin?next=%2Fadmin%2Fusers%3Fpage%3D2")},
		{"authenticated without profile", signedIn(""), Authenticated(), "/messages", Allow()},
		{"role without profile", signedIn(""), Role(profiledomain.RoleFreelancer), "/dashboard/freelancer", Redirect("/onboarding/role")},
		{"matching role", signedIn(profiledomain.RoleFreelancer), Role(profiledomain.RoleFreelancer), "/dashboard/freelancer", Allow()},
		{"client on admin page", signedIn(profiledomain.RoleClient), Role(profiledomain.RoleAdmin), "/admin", Redirect("/dashboard/client")},
		{"admin on freelancer page", signedIn(profiledomain.RoleAdmin), Role(profiledomain.RoleFreelancer), "/dashboard/freelancer", Redirect("/admin")},
		{"unknown stored role", signedIn("owner"), Role(profiledomain.RoleAdmin), "/admin", Redirect("/onboarding/role")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, g.Decide(tc.view, tc.req, tc.path))
		})
	}
}

func TestDecideIsRederivedPerView(t *testing.T) {
	g := testGuard(t)
	req := Role(profiledomain.RoleFreelancer)

	// A freelancer on their dashboard signs out: the same route now sends
	// them to sign in, returning to where they were.
	assert.Equal(t, Allow(), g.Decide(signedIn(profiledomain.RoleFreelancer), req, "/dashboard/freelancer"))
	signedOut := authsession.View{Status: authsession.StatusReady}
	assert.Equal(t, Redirect("/signin?next=%2Fdashboard%2Ffreelancer"), g.Decide(signedOut, req, "/dashboard/freelancer"))
}

func TestSignInLocationRejectsForeignReturnPaths(t *testing.T) {
	g := testGuard(t)

	assert.Equal(t, "/signin", g.SignInLocation("https://evil.example/phish"))
	assert.Equal(t, "/signin", g.SignInLocation("//evil.example/phish"))
	assert.Equal(t, "/signin", g.SignInLocation(`/\evil.example`))
	assert.Equal(t, "/signin", g.SignInLocation(""))
	assert.Equal(t, "/signin", g.SignInLocation("/signin?next=%2Fadmin"))
	assert.Equal(t, "/signin?next=%2Fproposals%2F42", g.SignInLocation("/proposals/42"))
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{
		SignInPath:            "signin",
		IncompleteProfilePath: "/onboarding/role",
		RoleHomePaths: map[profiledomain.Role]string{
			profiledomain.RoleAdmin: "/admin",
			"owner":                 "/owner",
		},
	})
	require.ErrorIs(t, err, ErrMisconfigured)
	assert.Contains(t, err.Error(), "sign-in path")
	assert.Contains(t, err.Error(), `unknown role "owner"`)
	assert.Contains(t, err.Error(), "missing home path for role freelancer")
	assert.Contains(t, err.Error(), "missing home path for role client")
}

func TestCustomReturnParam(t *testing.T) {
	g, err := New(Config{
		SignInPath:            "/login",
		IncompleteProfilePath: "/welcome",
		ReturnParam:           "redirect_to",
		RoleHomePaths: map[profiledomain.Role]string{
			profiledomain.RoleAdmin:      "/admin",
			profiledomain.RoleFreelancer: "/f",
			profiledomain.RoleClient:     "/c",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, Redirect("/login?redirect_to=%2Ff"), g.Decide(authsession.View{Status: authsession.StatusReady}, Authenticated(), "/f"))
}
