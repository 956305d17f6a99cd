package routeguard

import (
	"testing"

	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequirement(t *testing.T) {
	cases := map[string]Requirement{
		"none":            None(),
		" Authenticated ": Authenticated(),
		"role:admin":      Role(profiledomain.RoleAdmin),
		"role: client":    Role(profiledomain.RoleClient),
	}
	for raw, want := range cases {
		got, err := ParseRequirement(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "public", "role:", "role:owner"} {
		_, err := ParseRequirement(raw)
		assert.ErrorIs(t, err, ErrMisconfigured, raw)
	}
}

func TestRequirementAllowsRole(t *testing.T) {
	assert.True(t, None().AllowsRole(profiledomain.RoleClient))
	assert.True(t, Authenticated().AllowsRole(profiledomain.RoleClient))
	assert.True(t, Role(profiledomain.RoleClient).AllowsRole(profiledomain.RoleClient))
	assert.False(t, Role(profiledomain.RoleAdmin).AllowsRole(profiledomain.RoleClient))
	assert.Equal(t, "role:admin", Role(profiledomain.RoleAdmin).String())
}
