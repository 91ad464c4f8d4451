package mux

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MethodAny matches every request method. Used by Router.All.
const MethodAny = "*"

// Params holds the named path parameters extracted from a matched route.
type Params map[string]string

// Get returns the value of the named parameter, or "" when absent.
func (p Params) Get(name string) string {
	return p[name]
}

// Route is a single entry of the route table: a method, a path pattern,
// optional route-level stages and the terminal handler.
type Route struct {
	router  *Router
	method  string
	pattern *pattern
	handler StageFunc
	stages  []StageFunc
	name    string
	err     error
}

// Match reports whether the route accepts the method and path, returning
// the extracted parameters.
func (r *Route) Match(method, path string) (Params, bool) {
	if r.err != nil || !r.matchMethod(method) {
		return nil, false
	}

	return r.pattern.match(path)
}

func (r *Route) matchMethod(method string) bool {
	return r.method == MethodAny || r.method == method
}

// Use appends route-level stages. They run after global and scoped stages
// and immediately before the handler, in registration order.
func (r *Route) Use(stages ...StageFunc) *Route {
	r.router.mustBeOpen()

	for _, s := range stages {
		if s == nil {
			panic("mux: nil stage passed to Route.Use")
		}
	}
	r.stages = append(r.stages, stages...)

	return r
}

// Name sets the name used to look the route up with Router.Route.
// Naming a route twice, or reusing a name, records an error.
func (r *Route) Name(name string) *Route {
	r.router.mustBeOpen()

	if r.name != "" {
		r.err = errors.Join(r.err, fmt.Errorf("mux: route already has name %q, can't set %q", r.name, name))
		return r
	}

	if _, taken := r.router.named[name]; taken {
		r.err = errors.Join(r.err, fmt.Errorf("mux: route name %q already registered", name))
		return r
	}

	r.name = name
	r.router.named[name] = r

	return r
}

// GetName returns the route name, if any.
func (r *Route) GetName() string {
	return r.name
}

// Method returns the method the route was registered with.
func (r *Route) Method() string {
	return r.method
}

// Pattern returns the route template as registered.
func (r *Route) Pattern() string {
	if r.pattern == nil {
		return ""
	}

	return r.pattern.template
}

// ParamNames returns the parameter names declared by the pattern.
func (r *Route) ParamNames() []string {
	if r.pattern == nil {
		return nil
	}

	return append([]string(nil), r.pattern.names...)
}

// Err returns the registration error recorded on the route, if any.
func (r *Route) Err() error {
	return r.err
}

// URLPath builds a path for the route from key/value pairs:
//
//	r.Route("user").URLPath("id", "42") // "/users/42"
func (r *Route) URLPath(pairs ...string) (string, error) {
	if r.err != nil {
		return "", r.err
	}

	if len(pairs)%2 != 0 {
		return "", fmt.Errorf("mux: number of parameters must be multiple of 2, got %v", pairs)
	}

	values := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		values[pairs[i]] = pairs[i+1]
	}

	return r.pattern.build(values)
}

// String implements fmt.Stringer, e.g. "GET /api/users/:id".
func (r *Route) String() string {
	return r.method + " " + r.Pattern()
}

func newRoute(router *Router, method, tpl string, handler StageFunc) *Route {
	route := &Route{
		router:  router,
		method:  strings.ToUpper(method),
		handler: handler,
	}

	if handler == nil {
		route.err = fmt.Errorf("mux: nil handler for %s %s", route.method, tpl)
	}

	p, err := parsePattern(tpl)
	if err != nil {
		route.err = errors.Join(route.err, err)
		p = &pattern{template: tpl}
	}
	route.pattern = p

	if route.method == "" {
		route.err = errors.Join(route.err, fmt.Errorf("mux: empty method for %s", tpl))
	}

	return route
}

// isHeadFallback reports whether a GET route may serve a HEAD request.
func isHeadFallback(route *Route, method string) bool {
	return method == http.MethodHead && route.method == http.MethodGet
}
