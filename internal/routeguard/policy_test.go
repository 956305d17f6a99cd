package routeguard

import (
	"testing"

	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyCompiles(t *testing.T) {
	compiled, err := DefaultPolicy().Compile()
	require.NoError(t, err)

	assert.Equal(t, None(), compiled.Table.Resolve("/signin"))
	assert.Equal(t, Authenticated(), compiled.Table.Resolve("/auth/me"))
	assert.Equal(t, Role(profiledomain.RoleFreelancer), compiled.Table.Resolve("/dashboard/freelancer/proposals"))
	assert.Equal(t, "next", compiled.Guard.Config().ReturnParam)
}

func TestCompileRejectsUnreachableTargets(t *testing.T) {
	cases := map[string]func(p *Policy){
		"sign-in path guarded": func(p *Policy) {
			p.Routes[1].Require = "authenticated"
		},
		"incomplete-profile path needs role": func(p *Policy) {
			p.Routes = append(p.Routes, RouteRule{Path: "/onboarding/role", Require: "role:client"})
		},
		"role home needs another role": func(p *Policy) {
			p.RoleHomePaths["client"] = "/admin/clients"
		},
		"missing role home": func(p *Policy) {
			delete(p.RoleHomePaths, "admin")
		},
		"unknown role home": func(p *Policy) {
			p.RoleHomePaths["owner"] = "/owner"
		},
		"bad requirement": func(p *Policy) {
			p.Routes = append(p.Routes, RouteRule{Path: "/x", Require: "staff"})
		},
		"bad default": func(p *Policy) {
			p.Default = "role:owner"
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultPolicy()
			mutate(&p)
			_, err := p.Compile()
			assert.ErrorIs(t, err, ErrMisconfigured)
		})
	}
}

func TestCompileSignInPathGuardedByDefault(t *testing.T) {
	p := DefaultPolicy()
	p.Default = "authenticated"
	p.Routes = []RouteRule{
		{Path: "/admin", Require: "role:admin"},
		{Path: "/dashboard/freelancer", Require: "role:freelancer"},
		{Path: "/dashboard/client", Require: "role:client"},
	}

	_, err := p.Compile()
	require.ErrorIs(t, err, ErrMisconfigured)
	assert.Contains(t, err.Error(), "sign-in path /signin requires authenticated")
}
