package routeguard

import (
	"errors"
	"fmt"
	"strings"

	profiledomain "github.com/smallbiznis/talentbay/internal/profile/domain"
)

// Policy is the on-disk form of the route guard configuration, read from the
// "guard" key of routes.yml.
type Policy struct {
	SignInPath            string            `mapstructure:"signInPath"`
	IncompleteProfilePath string            `mapstructure:"incompleteProfilePath"`
	RoleHomePaths         map[string]string `mapstructure:"roleHomePaths"`
	ReturnParam           string            `mapstructure:"returnParam"`
	Default               string            `mapstructure:"default"`
	Routes                []RouteRule       `mapstructure:"routes"`
}

type RouteRule struct {
	Path    string `mapstructure:"path"`
	Require string `mapstructure:"require"`
}

func DefaultPolicy() Policy {
	return Policy{
		SignInPath:            "/signin",
		IncompleteProfilePath: "/onboarding/role",
		RoleHomePaths: map[string]string{
			string(profiledomain.RoleAdmin):      "/admin",
			string(profiledomain.RoleFreelancer): "/dashboard/freelancer",
			string(profiledomain.RoleClient):     "/dashboard/client",
		},
		ReturnParam: defaultReturnParam,
		Default:     string(RequireNone),
		Routes: []RouteRule{
			{Path: "/", Require: "none"},
			{Path: "/signin", Require: "none"},
			{Path: "/auth", Require: "none"},
			{Path: "/auth/me", Require: "authenticated"},
			{Path: "/api/session", Require: "none"},
			{Path: "/onboarding", Require: "authenticated"},
			{Path: "/dashboard", Require: "authenticated"},
			{Path: "/dashboard/freelancer", Require: "role:freelancer"},
			{Path: "/dashboard/client", Require: "role:client"},
			{Path: "/admin", Require: "role:admin"},
			{Path: "/api/profiles", Require: "authenticated"},
			{Path: "/api/admin", Require: "role:admin"},
			{Path: "/messages", Require: "authenticated"},
		},
	}
}

// Compiled is a validated policy ready to serve decisions.
type Compiled struct {
	Policy Policy
	Guard  *Guard
	Table  *Table
}

// Compile validates p and builds its guard and route table. Every problem is
// reported, each wrapping ErrMisconfigured.
func (p Policy) Compile() (*Compiled, error) {
	var errs []error

	homes := make(map[profiledomain.Role]string, len(p.RoleHomePaths))
	for name, home := range p.RoleHomePaths {
		role, err := profiledomain.ParseRole(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: unknown role %q in role homes", ErrMisconfigured, name))
			continue
		}
		homes[role] = strings.TrimSpace(home)
	}

	guard, err := New(Config{
		SignInPath:            strings.TrimSpace(p.SignInPath),
		IncompleteProfilePath: strings.TrimSpace(p.IncompleteProfilePath),
		RoleHomePaths:         homes,
		ReturnParam:           strings.TrimSpace(p.ReturnParam),
	})
	if err != nil {
		errs = append(errs, err)
	}

	fallback := None()
	if strings.TrimSpace(p.Default) != "" {
		if fallback, err = ParseRequirement(p.Default); err != nil {
			errs = append(errs, fmt.Errorf("default requirement: %w", err))
		}
	}

	routes := make([]Route, 0, len(p.Routes))
	for _, rule := range p.Routes {
		req, err := ParseRequirement(rule.Require)
		if err != nil {
			errs = append(errs, fmt.Errorf("route %q: %w", rule.Path, err))
			continue
		}
		routes = append(routes, Route{Prefix: strings.TrimSpace(rule.Path), Requirement: req})
	}
	table, err := NewTable(routes, fallback)
	if err != nil {
		errs = append(errs, err)
	}

	if guard == nil || table == nil || len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := checkReachability(guard.Config(), table); err != nil {
		return nil, err
	}
	return &Compiled{Policy: p, Guard: guard, Table: table}, nil
}

// checkReachability rejects policies whose redirect targets would redirect
// again: the sign-in page must be public, the incomplete-profile page must
// not need a role, and each role home must admit its own role.
func checkReachability(cfg Config, table *Table) error {
	var errs []error
	if req := table.Resolve(cfg.SignInPath); req.Kind != RequireNone {
		errs = append(errs, fmt.Errorf("%w: sign-in path %s requires %s", ErrMisconfigured, cfg.SignInPath, req))
	}
	if req := table.Resolve(cfg.IncompleteProfilePath); req.Kind == RequireRole {
		errs = append(errs, fmt.Errorf("%w: incomplete-profile path %s requires %s", ErrMisconfigured, cfg.IncompleteProfilePath, req))
	}
	for _, role := range profiledomain.Roles {
		home := cfg.RoleHomePaths[role]
		if req := table.Resolve(home); !req.AllowsRole(role) {
			errs = append(errs, fmt.Errorf("%w: home %s of role %s requires %s", ErrMisconfigured, home, role, req))
		}
	}
	return errors.Join(errs...)
}
