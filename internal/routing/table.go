// Package routing keeps versioned route registrations independent of the HTTP
// framework that eventually serves them.
package routing

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// VersionHeader carries the requested route version
const VersionHeader = "API-Version"

// Route is one (method, path) pair with all of its registered versions
type Route[H any] struct {
	Method   string
	Path     string
	versions map[string]H
}

// Versions returns the registered versions, oldest first
func (r *Route[H]) Versions() []string {
	out := make([]string, 0, len(r.versions))
	for v := range r.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return versionLess(out[i], out[j]) })
	return out
}

// Latest returns the newest registered version
func (r *Route[H]) Latest() string {
	versions := r.Versions()
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1]
}

// Table maps (method, path, version) to a handler of type H
type Table[H any] struct {
	mu     sync.RWMutex
	routes map[string]*Route[H]
	order  []string
}

// NewTable creates an empty dispatch table
func NewTable[H any]() *Table[H] {
	return &Table[H]{routes: make(map[string]*Route[H])}
}

// Register adds a handler for a specific version of a route
func (t *Table[H]) Register(method, path, version string, handler H) error {
	if version == "" {
		return fmt.Errorf("route %s %s: version is required", method, path)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	key := method + " " + path
	route, ok := t.routes[key]
	if !ok {
		route = &Route[H]{Method: method, Path: path, versions: make(map[string]H)}
		t.routes[key] = route
		t.order = append(t.order, key)
	}
	if _, exists := route.versions[version]; exists {
		return fmt.Errorf("route %s %s: version %s already registered", method, path, version)
	}
	route.versions[version] = handler
	return nil
}

// Lookup resolves the handler for a version. An empty version selects the
// latest registered one. The resolved version is returned alongside.
func (t *Table[H]) Lookup(method, path, version string) (H, string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var zero H
	route, ok := t.routes[method+" "+path]
	if !ok {
		return zero, "", fmt.Errorf("no route registered for %s %s", method, path)
	}
	if version == "" {
		version = route.Latest()
	}
	handler, ok := route.versions[version]
	if !ok {
		return zero, "", &UnknownVersionError{Method: method, Path: path, Version: version, Available: route.Versions()}
	}
	return handler, version, nil
}

// Routes returns the registered routes in registration order
func (t *Table[H]) Routes() []*Route[H] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Route[H], 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.routes[key])
	}
	return out
}

// UnknownVersionError is returned when a route exists but not in the
// requested version
type UnknownVersionError struct {
	Method    string
	Path      string
	Version   string
	Available []string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("%s %s: unsupported version %q, available versions: %v", e.Method, e.Path, e.Version, e.Available)
}

// versionLess orders numeric versions numerically and everything else
// lexically.
func versionLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
