package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(string(r))
		assert.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := ParseRole("owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestProfileEqual(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := &Profile{
		ID:        1,
		Handle:    "ana",
		Role:      RoleFreelancer,
		Skills:    datatypes.NewJSONSlice([]string{"go"}),
		Contact:   datatypes.JSONMap{"site": "x"},
		CreatedAt: at,
		UpdatedAt: at,
	}

	same := *base
	same.CreatedAt = at.In(time.FixedZone("WIB", 7*3600))
	assert.True(t, base.Equal(&same))

	roleOnly := *base
	roleOnly.Role = RoleAdmin
	assert.False(t, base.Equal(&roleOnly))

	skills := *base
	skills.Skills = datatypes.NewJSONSlice([]string{"go", "rust"})
	assert.False(t, base.Equal(&skills))

	var nilProfile *Profile
	assert.True(t, nilProfile.Equal(nil))
	assert.False(t, base.Equal(nil))
}
