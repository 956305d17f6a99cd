// Package routeguard decides whether a viewer may see a route.
package routeguard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/talentbay/internal/authsession"
	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
)

// ErrMisconfigured is returned when a route policy cannot be used. It is
// raised while loading configuration, never while serving a request.
var ErrMisconfigured = errors.New("route guard misconfigured")

const defaultReturnParam = "next"

type Config struct {
	SignInPath            string
	IncompleteProfilePath string
	RoleHomePaths         map[profiledomain.Role]string
	ReturnParam           string
}

// Validate checks that every path is local and every role has a home.
func (c Config) Validate() error {
	var errs []error
	if !isLocalPath(c.SignInPath) {
		errs = append(errs, fmt.Errorf("%w: sign-in path %q must be an absolute local path", ErrMisconfigured, c.SignInPath))
	}
	if !isLocalPath(c.IncompleteProfilePath) {
		errs = append(errs, fmt.Errorf("%w: incomplete-profile path %q must be an absolute local path", ErrMisconfigured, c.IncompleteProfilePath))
	}
	for role, home := range c.RoleHomePaths {
		if !role.IsValid() {
			errs = append(errs, fmt.Errorf("%w: unknown role %q in role homes", ErrMisconfigured, role))
			continue
		}
		if !isLocalPath(home) {
			errs = append(errs, fmt.Errorf("%w: home of %s %q must be an absolute local path", ErrMisconfigured, role, home))
		}
	}
	for _, role := range profiledomain.Roles {
		if _, ok := c.RoleHomePaths[role]; !ok {
			errs = append(errs, fmt.Errorf("%w: missing home path for role %s", ErrMisconfigured, role))
		}
	}
	return errors.Join(errs...)
}

// Guard maps a view and a route requirement to a decision. It holds no state
// besides its configuration, so every call re-derives the decision.
type Guard struct {
	cfg Config
}

func New(cfg Config) (*Guard, error) {
	if strings.TrimSpace(cfg.ReturnParam) == "" {
		cfg.ReturnParam = defaultReturnParam
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	homes := make(map[profiledomain.Role]string, len(cfg.RoleHomePaths))
	for role, home := range cfg.RoleHomePaths {
		homes[role] = home
	}
	cfg.RoleHomePaths = homes
	return &Guard{cfg: cfg}, nil
}

func (g *Guard) Config() Config {
	return g.cfg
}

// Decide evaluates req for view. requestedPath is preserved in the sign-in
// redirect when it is a local path.
func (g *Guard) Decide(view authsession.View, req Requirement, requestedPath string) Decision {
	if view.Status == authsession.StatusInitializing {
		return Hold()
	}
	if req.Kind == RequireNone {
		return Allow()
	}
	if !view.IsAuthenticated() {
		return Redirect(g.SignInLocation(requestedPath))
	}
	if req.Kind == RequireAuthenticated {
		return Allow()
	}

	if view.Profile == nil {
		return Redirect(g.cfg.IncompleteProfilePath)
	}
	if view.Profile.Role == req.Role {
		return Allow()
	}
	home, ok := g.cfg.RoleHomePaths[view.Profile.Role]
	if !ok {
		// The stored role is not one we know; treat the profile as incomplete.
		return Redirect(g.cfg.IncompleteProfilePath)
	}
	return Redirect(home)
}

// SignInLocation returns the sign-in path carrying requestedPath as the
// return target.
func (g *Guard) SignInLocation(requestedPath string) string {
	if !isLocalPath(requestedPath) || pathOnly(requestedPath) == g.cfg.SignInPath {
		return g.cfg.SignInPath
	}
	q := url.Values{}
	q.Set(g.cfg.ReturnParam, requestedPath)
	return g.cfg.SignInPath + "?" + q.Encode()
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") &&
		!strings.HasPrefix(p, "//") &&
		!strings.HasPrefix(p, "/\\")
}

func pathOnly(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}
