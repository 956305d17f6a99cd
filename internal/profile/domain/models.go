package domain

import (
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleFreelancer Role = "freelancer"
	RoleClient     Role = "client"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleAdmin, RoleFreelancer, RoleClient}

func (r Role) IsValid() bool {
	return slices.Contains(Roles, r)
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.IsValid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Profile is the marketplace record of a signed-up user. IdentityID is the
// identity id issued by the auth service; there is at most one profile per
// identity.
type Profile struct {
	ID              snowflake.ID                `gorm:"primaryKey" json:"id"`
	IdentityID      string                      `gorm:"column:identity_id;not null;uniqueIndex" json:"identity_id"`
	Handle          string                      `gorm:"not null;uniqueIndex" json:"handle"`
	DisplayName     string                      `gorm:"column:display_name;not null" json:"display_name"`
	Role            Role                        `gorm:"type:text;not null" json:"role"`
	Headline        string                      `gorm:"type:text" json:"headline,omitempty"`
	Skills          datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"skills"`
	HourlyRateCents int64                       `gorm:"column:hourly_rate_cents" json:"hourly_rate_cents,omitempty"`
	Currency        string                      `gorm:"column:currency" json:"currency,omitempty"`
	AvatarURL       string                      `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	Contact         datatypes.JSONMap           `gorm:"type:jsonb;not null;default:'{}'" json:"contact,omitempty"`
	CreatedAt       time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// Equal reports whether both profiles carry the same data. A role-only edit
// therefore makes two snapshots unequal.
func (p *Profile) Equal(o *Profile) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.ID == o.ID &&
		p.IdentityID == o.IdentityID &&
		p.Handle == o.Handle &&
		p.DisplayName == o.DisplayName &&
		p.Role == o.Role &&
		p.Headline == o.Headline &&
		slices.Equal(p.Skills, o.Skills) &&
		p.HourlyRateCents == o.HourlyRateCents &&
		p.Currency == o.Currency &&
		p.AvatarURL == o.AvatarURL &&
		maps.EqualFunc(p.Contact, o.Contact, func(a, b any) bool { return reflect.DeepEqual(a, b) }) &&
		p.CreatedAt.Equal(o.CreatedAt) &&
		p.UpdatedAt.Equal(o.UpdatedAt)
}
