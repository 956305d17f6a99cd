package authsession

import (
	"encoding/json"

	authdomain "github.com/smallbiznis/talentbay/internal/auth/domain"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
)

type Status string

const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// View is an immutable snapshot of who is signed in on a device. A new View
// replaces the old one on every transition; fields are never mutated in place.
type View struct {
	Identity *authdomain.Identity
	Profile  *profiledomain.Profile
	Status   Status
}

// IsAuthenticated depends on the identity only. A missing or failed profile
// never signs the user out.
func (v View) IsAuthenticated() bool {
	return v.Identity != nil
}

func (v View) Settled() bool {
	return v.Status != StatusInitializing
}

// Equal reports whether two views carry the same status, identity and profile.
func (v View) Equal(o View) bool {
	return v.Status == o.Status &&
		v.Identity.Equal(o.Identity) &&
		v.Profile.Equal(o.Profile)
}

type viewJSON struct {
	Identity        *authdomain.Identity   `json:"identity"`
	Profile         *profiledomain.Profile `json:"profile"`
	Status          Status                 `json:"status"`
	IsAuthenticated bool                   `json:"is_authenticated"`
}

func (v View) MarshalJSON() ([]byte, error) {
	return json.Marshal(viewJSON{
		Identity:        v.Identity,
		Profile:         v.Profile,
		Status:          v.Status,
		IsAuthenticated: v.IsAuthenticated(),
	})
}
