package routegroups

import "net/http"

// Guards bundles the middleware every protected route group needs.
type Guards struct {
	WithAuth          func(http.HandlerFunc) http.HandlerFunc
	RequirePermission func(string) func(http.HandlerFunc) http.HandlerFunc
}

// AuthPerm wraps a handler with authentication plus a permission check.
func (g Guards) AuthPerm(perm string, h http.HandlerFunc) http.HandlerFunc {
	return g.WithAuth(g.RequirePermission(perm)(h))
}
