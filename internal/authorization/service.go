package authorization

import (
	"context"

	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
)

// Actor is the signed-in user asking for access. Role is empty until the
// user has completed a profile.
type Actor struct {
	IdentityID string
	Role       profiledomain.Role
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}
