package mux

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Renderer renders a named template. render.Engine implements it.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// Context is the per-request state that flows through the stages. It is
// owned by the goroutine serving the request and must not be retained after
// the response is finished.
type Context struct {
	Request *http.Request
	Writer  *ResponseWriter

	// Params holds the path parameters of the matched route.
	Params Params

	// Body is the parsed request body attached by a body parsing stage:
	// a decoded JSON value or a map of form fields.
	Body any

	router   *Router
	route    *Route
	query    url.Values
	rawBody  []byte
	form     url.Values
	values   map[string]any
	onFinish []func(*Context)
	logger   *zap.Logger
}

func newContext(router *Router, w *ResponseWriter, req *http.Request) *Context {
	return &Context{
		Request: req,
		Writer:  w,
		router:  router,
	}
}

// Method returns the request method.
func (c *Context) Method() string {
	return c.Request.Method
}

// Path returns the request path used for routing.
func (c *Context) Path() string {
	return c.Request.URL.Path
}

// Param returns a path parameter of the matched route.
func (c *Context) Param(name string) string {
	return c.Params.Get(name)
}

// Query returns the first value of a query parameter.
func (c *Context) Query(name string) string {
	return c.QueryValues().Get(name)
}

// QueryDefault returns the query parameter or def when it is absent or
// empty.
func (c *Context) QueryDefault(name, def string) string {
	if v := c.Query(name); v != "" {
		return v
	}

	return def
}

// QueryValues returns the parsed query string. It is parsed once.
func (c *Context) QueryValues() url.Values {
	if c.query == nil {
		c.query = c.Request.URL.Query()
	}

	return c.query
}

// Header returns the request headers.
func (c *Context) Header() http.Header {
	return c.Request.Header
}

// ContentType returns the request media type without parameters.
func (c *Context) ContentType() string {
	ct := c.Request.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}

	return mediaType
}

// Route returns the matched route, or nil before routing or on a miss.
func (c *Context) Route() *Route {
	return c.route
}

// Router returns the router dispatching the request.
func (c *Context) Router() *Router {
	return c.router
}

// Context returns the request context.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// SetRequest replaces the in-flight request, e.g. after attaching values to
// its context. The routing path is taken from the new request.
func (c *Context) SetRequest(r *http.Request) {
	if r.URL.RawQuery != c.Request.URL.RawQuery {
		c.query = nil
	}

	c.Request = r
}

// SetBody attaches a parsed body and the raw bytes it was decoded from.
func (c *Context) SetBody(parsed any, raw []byte) {
	c.Body = parsed
	c.rawBody = raw
}

// RawBody returns the raw body captured by a body parsing stage.
func (c *Context) RawBody() []byte {
	return c.rawBody
}

// SetForm attaches decoded form fields (URL-encoded or multipart text
// parts) and exposes them as Body.
func (c *Context) SetForm(form url.Values) {
	c.form = form

	fields := make(map[string]any, len(form))
	for k, v := range form {
		if len(v) == 1 {
			fields[k] = v[0]
		} else {
			fields[k] = append([]string(nil), v...)
		}
	}
	c.Body = fields
}

// Form returns the form fields attached by a body parsing stage.
func (c *Context) Form() url.Values {
	return c.form
}

// Set stores a request-scoped value.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}

	c.values[key] = value
}

// Get returns a request-scoped value.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// OnFinish registers fn to run after the response is finalized. Callbacks
// run in reverse registration order.
func (c *Context) OnFinish(fn func(*Context)) {
	c.onFinish = append(c.onFinish, fn)
}

// Logger returns the router logger annotated with the request method and
// path.
func (c *Context) Logger() *zap.Logger {
	if c.logger == nil {
		c.logger = c.router.logger().With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
	}

	return c.logger
}

// JSON finalizes the response with v encoded as JSON.
func (c *Context) JSON(code int, v any) Result {
	if c.Writer.Written() {
		return c.refinalize()
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return Fail(err)
	}

	c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")

	return c.write(code, buf.Bytes())
}

// HTML finalizes the response with an HTML fragment.
func (c *Context) HTML(code int, html string) Result {
	if c.Writer.Written() {
		return c.refinalize()
	}

	c.Writer.Header().Set("Content-Type", "text/html; charset=utf-8")

	return c.write(code, []byte(html))
}

// Text finalizes the response with plain text.
func (c *Context) Text(code int, text string) Result {
	if c.Writer.Written() {
		return c.refinalize()
	}

	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")

	return c.write(code, []byte(text))
}

// NoContent finalizes the response with a status and no body.
func (c *Context) NoContent(code int) Result {
	if c.Writer.Written() {
		return c.refinalize()
	}

	c.Writer.WriteHeader(code)

	return Halt()
}

// Render finalizes the response with a template rendered by the router's
// Renderer. Rendering happens into a buffer so a template error still
// leaves the response unwritten for the error stages.
func (c *Context) Render(code int, name string, data any) Result {
	if c.Writer.Written() {
		return c.refinalize()
	}

	if c.router.Renderer == nil {
		return Fail(ErrNoRenderer)
	}

	var buf bytes.Buffer
	if err := c.router.Renderer.Render(&buf, name, data); err != nil {
		return Fail(err)
	}

	c.Writer.Header().Set("Content-Type", "text/html; charset=utf-8")

	return c.write(code, buf.Bytes())
}

// Redirect finalizes the response with a redirect to location.
func (c *Context) Redirect(code int, location string) Result {
	if c.Writer.Written() {
		return c.refinalize()
	}

	http.Redirect(c.Writer, c.Request, location, code)

	return Halt()
}

func (c *Context) write(code int, body []byte) Result {
	c.Writer.WriteHeader(code)

	if c.Request.Method == http.MethodHead {
		return Halt()
	}

	if _, err := c.Writer.Write(body); err != nil {
		c.Logger().Debug("write response body", zap.Error(err))
	}

	return Halt()
}

func (c *Context) refinalize() Result {
	c.Writer.extra++
	return Fail(ErrResponseFinalized)
}
