package routeguard

import (
	"fmt"
	"strings"

	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
)

type RequirementKind string

const (
	RequireNone          RequirementKind = "none"
	RequireAuthenticated RequirementKind = "authenticated"
	RequireRole          RequirementKind = "role"
)

// Requirement is what a route demands of the viewer.
type Requirement struct {
	Kind RequirementKind
	Role profiledomain.Role
}

func None() Requirement          { return Requirement{Kind: RequireNone} }
func Authenticated() Requirement { return Requirement{Kind: RequireAuthenticated} }

func Role(role profiledomain.Role) Requirement {
	return Requirement{Kind: RequireRole, Role: role}
}

// ParseRequirement accepts "none", "authenticated" and "role:<role>".
func ParseRequirement(raw string) (Requirement, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case string(RequireNone):
		return None(), nil
	case string(RequireAuthenticated):
		return Authenticated(), nil
	}

	name, ok := strings.CutPrefix(value, "role:")
	if !ok {
		return Requirement{}, fmt.Errorf("%w: unknown requirement %q", ErrMisconfigured, raw)
	}
	role, err := profiledomain.ParseRole(strings.TrimSpace(name))
	if err != nil {
		return Requirement{}, fmt.Errorf("%w: unknown role in requirement %q", ErrMisconfigured, raw)
	}
	return Role(role), nil
}

func (r Requirement) String() string {
	if r.Kind == RequireRole {
		return "role:" + string(r.Role)
	}
	return string(r.Kind)
}

// AllowsRole reports whether a signed-in user with a complete profile of
// role could pass r.
func (r Requirement) AllowsRole(role profiledomain.Role) bool {
	return r.Kind != RequireRole || r.Role == role
}
