package mux

import "net/http"

// Group registers routes and stages under a common path prefix:
//
//	api := r.Group("/api")
//	api.Use(auth)
//	api.Get("/users", listUsers) // GET /api/users
//
// Stages registered on a group are scoped: they run only for requests at or
// below the prefix, whether or not a route matched.
type Group struct {
	router *Router
	prefix string
}

// Prefix returns the group path prefix.
func (g *Group) Prefix() string {
	return g.prefix
}

// Group returns a nested group.
func (g *Group) Group(prefix string) *Group {
	return &Group{router: g.router, prefix: g.prefix + normalizePrefix(prefix)}
}

// Use registers stages scoped to the group prefix.
func (g *Group) Use(stages ...StageFunc) *Group {
	g.router.UsePrefix(g.prefix, stages...)
	return g
}

// UseError registers error stages scoped to the group prefix.
func (g *Group) UseError(stages ...ErrorStageFunc) *Group {
	g.router.useError(g.prefix, stages...)
	return g
}

// Handle registers a route below the group prefix.
func (g *Group) Handle(method, pattern string, handler StageFunc) *Route {
	return g.router.Handle(method, g.path(pattern), handler)
}

// Get registers a GET route below the group prefix.
func (g *Group) Get(pattern string, handler StageFunc) *Route {
	return g.Handle(http.MethodGet, pattern, handler)
}

// Post registers a POST route below the group prefix.
func (g *Group) Post(pattern string, handler StageFunc) *Route {
	return g.Handle(http.MethodPost, pattern, handler)
}

// Put registers a PUT route below the group prefix.
func (g *Group) Put(pattern string, handler StageFunc) *Route {
	return g.Handle(http.MethodPut, pattern, handler)
}

// Patch registers a PATCH route below the group prefix.
func (g *Group) Patch(pattern string, handler StageFunc) *Route {
	return g.Handle(http.MethodPatch, pattern, handler)
}

// Delete registers a DELETE route below the group prefix.
func (g *Group) Delete(pattern string, handler StageFunc) *Route {
	return g.Handle(http.MethodDelete, pattern, handler)
}

func (g *Group) path(pattern string) string {
	if pattern == "" || pattern == "/" {
		if g.prefix == "" {
			return "/"
		}
		return g.prefix
	}

	return g.prefix + pattern
}
