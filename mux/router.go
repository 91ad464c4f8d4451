package mux

import (
	"errors"
	"net/http"
	"sort"
	"sync/atomic"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router is the route table and dispatcher. It implements http.Handler:
//
//	r := mux.NewRouter()
//	r.Use(logging)
//	r.Get("/users/:id", showUser)
//	http.ListenAndServe(":3000", r)
//
// Registration must complete before the first request is served; the
// router then seals and treats its tables as read-only.
type Router struct {
	// NotFound runs when no route matches, or when the matched handler
	// returns Next without writing. If nil, a JSON 404 is written.
	NotFound StageFunc

	// Logger receives failures and double finalizations. If nil, logging
	// is disabled.
	Logger *zap.Logger

	// Renderer backs Context.Render.
	Renderer Renderer

	routes      []*Route
	named       map[string]*Route
	global      Chain
	scoped      Chain
	errorStages []errorEntry
	sealed      atomic.Bool
}

var nopLogger = zap.NewNop()

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{
		named: make(map[string]*Route),
	}
}

func (r *Router) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return nopLogger
}

func (r *Router) mustBeOpen() {
	if r.sealed.Load() {
		panic("mux: router modified after it started serving requests")
	}
}

// --- Registration ---

// Handle appends a route to the table.
func (r *Router) Handle(method, pattern string, handler StageFunc) *Route {
	r.mustBeOpen()

	if r.named == nil {
		r.named = make(map[string]*Route)
	}

	route := newRoute(r, method, pattern, handler)
	r.routes = append(r.routes, route)

	return route
}

// Get registers a GET route. GET routes also answer HEAD requests.
func (r *Router) Get(pattern string, handler StageFunc) *Route {
	return r.Handle(http.MethodGet, pattern, handler)
}

// Post registers a POST route.
func (r *Router) Post(pattern string, handler StageFunc) *Route {
	return r.Handle(http.MethodPost, pattern, handler)
}

// Put registers a PUT route.
func (r *Router) Put(pattern string, handler StageFunc) *Route {
	return r.Handle(http.MethodPut, pattern, handler)
}

// Patch registers a PATCH route.
func (r *Router) Patch(pattern string, handler StageFunc) *Route {
	return r.Handle(http.MethodPatch, pattern, handler)
}

// Delete registers a DELETE route.
func (r *Router) Delete(pattern string, handler StageFunc) *Route {
	return r.Handle(http.MethodDelete, pattern, handler)
}

// All registers a route matching every method.
func (r *Router) All(pattern string, handler StageFunc) *Route {
	return r.Handle(MethodAny, pattern, handler)
}

// Use registers global stages. They run for every request before routing.
func (r *Router) Use(stages ...StageFunc) *Router {
	r.mustBeOpen()
	r.global.Use("", stages...)

	return r
}

// UsePrefix registers stages that run after routing for requests whose
// path lies at or below prefix.
func (r *Router) UsePrefix(prefix string, stages ...StageFunc) *Router {
	r.mustBeOpen()
	r.scoped.Use(prefix, stages...)

	return r
}

// UseError registers error stages. They are tried in registration order.
func (r *Router) UseError(stages ...ErrorStageFunc) *Router {
	return r.useError("", stages...)
}

func (r *Router) useError(prefix string, stages ...ErrorStageFunc) *Router {
	r.mustBeOpen()

	prefix = normalizePrefix(prefix)
	for _, s := range stages {
		if s == nil {
			panic("mux: nil error stage passed to UseError")
		}
		r.errorStages = append(r.errorStages, errorEntry{prefix: prefix, stage: s})
	}

	return r
}

// Group returns a registration scope whose routes and stages live under
// prefix.
func (r *Router) Group(prefix string) *Group {
	return &Group{router: r, prefix: normalizePrefix(prefix)}
}

// Validate returns the joined registration errors of all routes.
func (r *Router) Validate() error {
	var errs []error
	for _, route := range r.routes {
		if route.err != nil {
			errs = append(errs, route.err)
		}
	}

	return errors.Join(errs...)
}

// --- Lookup ---

// Match returns the first route, in registration order, that accepts the
// method and path. HEAD requests fall back to GET routes. path is expected
// in its escaped form, as returned by URL.EscapedPath.
func (r *Router) Match(method, path string) (*Route, Params, bool) {
	var fallback *Route
	var fallbackParams Params

	for _, route := range r.routes {
		if route.err != nil {
			continue
		}

		if route.matchMethod(method) {
			if params, ok := route.pattern.match(path); ok {
				return route, params, true
			}
			continue
		}

		if fallback == nil && isHeadFallback(route, method) {
			if params, ok := route.pattern.match(path); ok {
				fallback, fallbackParams = route, params
			}
		}
	}

	if fallback != nil {
		return fallback, fallbackParams, true
	}

	return nil, nil, false
}

// Route returns the route registered under name, or nil.
func (r *Router) Route(name string) *Route {
	return r.named[name]
}

// Routes returns the route table in registration order.
func (r *Router) Routes() []*Route {
	return append([]*Route(nil), r.routes...)
}

// Methods returns the sorted methods of the routes whose pattern matches
// path.
func (r *Router) Methods(path string) []string {
	seen := make(map[string]struct{})
	for _, route := range r.routes {
		if route.err != nil || route.method == MethodAny {
			continue
		}
		if _, ok := route.pattern.match(path); ok {
			seen[route.method] = struct{}{}
		}
	}

	methods := make([]string, 0, len(seen))
	for m := range seen {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	return methods
}

// --- Dispatch ---

// ServeHTTP dispatches the request through global stages, the route table,
// scoped stages and the handler. Exactly one response is produced.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.sealed.Store(true)

	if escaped := req.URL.EscapedPath(); httprouter.CleanPath(escaped) != escaped {
		cleaned := httprouter.CleanPath(escaped)

		u := *req.URL
		u.RawPath = cleaned
		u.Path = unescapeSegment(cleaned)
		req = req.Clone(req.Context())
		req.URL = &u
	}

	c := newContext(r, newResponseWriter(w), req)

	if res := r.dispatch(c); res.action == actionFail {
		r.handleError(c, res.err)
	}

	if !c.Writer.Written() {
		r.handleError(c, ErrNoResponse)
	}

	for i := len(c.onFinish) - 1; i >= 0; i-- {
		c.onFinish[i](c)
	}

	if n := c.Writer.Refinalized(); n > 0 {
		c.Logger().Error("response finalized more than once",
			zap.Int("status", c.Writer.Status()),
			zap.Int("extra_attempts", n),
		)
	}
}

func (r *Router) dispatch(c *Context) Result {
	if res := r.global.Run(c); !res.IsNext() {
		return res
	}

	route, params, ok := r.Match(c.Method(), c.Request.URL.EscapedPath())
	if ok {
		c.route = route
		c.Params = params
	}

	if res := r.scoped.Run(c); !res.IsNext() {
		return res
	}

	if ok {
		for _, stage := range route.stages {
			if res := runStage(c, stage); !res.IsNext() {
				return res
			}
		}

		if res := runStage(c, route.handler); !res.IsNext() {
			return res
		}
	}

	return r.notFound(c)
}

func (r *Router) notFound(c *Context) Result {
	if r.NotFound != nil {
		if res := runStage(c, r.NotFound); !res.IsNext() {
			return res
		}
	}

	return c.JSON(http.StatusNotFound, map[string]string{"error": http.StatusText(http.StatusNotFound)})
}
