// Package routes collects endpoints into a route table and detects
// duplicate route identities before a transport binds them.
package routes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/routekit/core/endpoint"
)

var (
	// ErrDuplicateRoute is returned when two endpoints share a method and path.
	ErrDuplicateRoute = errors.New("duplicate route found")
	// ErrInvalidRoute is returned for route identities that are not "METHOD /path".
	ErrInvalidRoute = errors.New("invalid route")
)

// Table is a set of routes keyed by "METHOD /path".
type Table struct {
	mu     sync.RWMutex
	routes map[string]endpoint.Route
}

// NewTable creates a table holding routes.
func NewTable(routes ...endpoint.Route) (*Table, error) {
	t := &Table{routes: make(map[string]endpoint.Route)}
	if err := t.Add(routes...); err != nil {
		return nil, err
	}
	return t, nil
}

// Add inserts routes. Nothing is inserted if any route collides with an
// existing one or with another route in the same call.
func (t *Table) Add(routes ...endpoint.Route) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.routes == nil {
		t.routes = make(map[string]endpoint.Route)
	}

	batch := make(map[string]endpoint.Route, len(routes))
	for _, r := range routes {
		key := r.Route()
		if _, exists := t.routes[key]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, key)
		}
		if _, exists := batch[key]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, key)
		}
		batch[key] = r
	}
	for k, r := range batch {
		t.routes[k] = r
	}
	return nil
}

// MustAdd is Add for static route lists; it panics on collision.
func (t *Table) MustAdd(routes ...endpoint.Route) *Table {
	if err := t.Add(routes...); err != nil {
		panic(err)
	}
	return t
}

// Get returns the route for "METHOD /path".
func (t *Table) Get(route string) (endpoint.Route, bool) {
	method, path, err := Split(route)
	if err != nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[Key(method, path)]
	return r, ok
}

// List returns all routes sorted by path, then method.
func (t *Table) List() []endpoint.Route {
	t.mu.RLock()
	out := make([]endpoint.Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		pi, pj := Routify(out[i].Path()), Routify(out[j].Path())
		if pi != pj {
			return pi < pj
		}
		if out[i].Path() != out[j].Path() {
			return out[i].Path() < out[j].Path()
		}
		return out[i].Method() < out[j].Method()
	})
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

// Key is the route identity "METHOD /path", built the same way as
// endpoint.Endpoint.Route. The path is kept as declared.
func Key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Routify normalizes a path: leading slash, no trailing slash, lower case.
// It is used for deployment names and listing order, never for identity.
func Routify(path string) string {
	p := strings.ToLower(strings.TrimSpace(path))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Split parses "METHOD /path".
func Split(route string) (method, path string, err error) {
	fields := strings.Fields(route)
	if len(fields) != 2 || !strings.HasPrefix(fields[1], "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRoute, route)
	}
	return strings.ToUpper(fields[0]), fields[1], nil
}

// DeploymentName derives a function-safe name from a route identity:
// "GET /users/:id" becomes "get_users_id".
func DeploymentName(route string) (string, error) {
	method, path, err := Split(route)
	if err != nil {
		return "", err
	}

	parts := []string{strings.ToLower(method)}
	for _, seg := range strings.Split(Routify(path), "/") {
		seg = strings.TrimPrefix(seg, ":")
		if seg == "" {
			continue
		}
		parts = append(parts, sanitize(seg))
	}
	return strings.Join(parts, "_"), nil
}

func sanitize(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
