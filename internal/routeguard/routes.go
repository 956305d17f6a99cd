package routeguard

import (
	"fmt"
	"sort"
	"strings"
)

type Route struct {
	Prefix      string
	Requirement Requirement
}

// Table resolves a request path to the requirement of its longest matching
// prefix. Prefixes match whole path segments only: /admin covers
// /admin/users but not /administrator.
type Table struct {
	routes   []Route
	fallback Requirement
}

func NewTable(routes []Route, fallback Requirement) (*Table, error) {
	seen := make(map[string]struct{}, len(routes))
	normalized := make([]Route, 0, len(routes))
	for _, r := range routes {
		if !isLocalPath(r.Prefix) {
			return nil, fmt.Errorf("%w: route %q must be an absolute local path", ErrMisconfigured, r.Prefix)
		}
		prefix := normalizePrefix(r.Prefix)
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("%w: duplicate route %q", ErrMisconfigured, prefix)
		}
		seen[prefix] = struct{}{}
		normalized = append(normalized, Route{Prefix: prefix, Requirement: r.Requirement})
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i].Prefix) > len(normalized[j].Prefix)
	})
	return &Table{routes: normalized, fallback: fallback}, nil
}

func (t *Table) Resolve(path string) Requirement {
	path = pathOnly(path)
	for _, r := range t.routes {
		if matchPrefix(r.Prefix, path) {
			return r.Requirement
		}
	}
	return t.fallback
}

// Routes returns the table sorted by path.
func (t *Table) Routes() []Route {
	out := append([]Route(nil), t.routes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

func (t *Table) Fallback() Requirement {
	return t.fallback
}

func normalizePrefix(p string) string {
	p = pathOnly(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func matchPrefix(prefix, path string) bool {
	if prefix == "/" {
		return path == "/"
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
