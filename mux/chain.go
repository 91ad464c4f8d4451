package mux

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
)

type action uint8

const (
	actionNext action = iota
	actionHalt
	actionFail
)

// Result is the outcome of a stage: continue with the next stage, halt the
// chain because the response is finalized, or fail with an error that is
// routed to the error stages.
type Result struct {
	action action
	err    error
}

// Next continues with the next stage.
func Next() Result {
	return Result{action: actionNext}
}

// Halt stops the chain. The stage must have finalized the response.
func Halt() Result {
	return Result{action: actionHalt}
}

// Fail stops the normal chain and hands err to the error stages.
// A nil error is reported as ErrNilFailure.
func Fail(err error) Result {
	if err == nil {
		err = ErrNilFailure
	}

	return Result{action: actionFail, err: err}
}

// IsNext reports whether the result continues the chain.
func (r Result) IsNext() bool { return r.action == actionNext }

// IsHalt reports whether the result halts the chain.
func (r Result) IsHalt() bool { return r.action == actionHalt }

// Err returns the failure carried by the result, or nil.
func (r Result) Err() error { return r.err }

// StageFunc is one link of the middleware chain. Handlers share the type.
type StageFunc func(c *Context) Result

// ErrorStageFunc receives failures raised by stages or handlers. Returning
// Next (or Fail with a new error) defers to the next error stage; Halt or
// writing the response stops propagation.
type ErrorStageFunc func(c *Context, err error) Result

// MiddlewareFunc is the net/http middleware shape accepted by Adapt.
type MiddlewareFunc func(http.Handler) http.Handler

// PanicError is the failure produced when a stage panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("mux: panic in stage: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return nil
}

type stageEntry struct {
	prefix string
	stage  StageFunc
}

// Chain is an ordered list of stages, each optionally scoped to a path
// prefix. It is safe for concurrent Run calls once registration is done.
type Chain struct {
	entries []stageEntry
}

// Use appends stages scoped to prefix. An empty prefix or "/" applies them
// to every request.
func (ch *Chain) Use(prefix string, stages ...StageFunc) {
	prefix = normalizePrefix(prefix)

	for _, s := range stages {
		if s == nil {
			panic("mux: nil stage passed to Use")
		}
		ch.entries = append(ch.entries, stageEntry{prefix: prefix, stage: s})
	}
}

// Len returns the number of registered stages.
func (ch *Chain) Len() int {
	return len(ch.entries)
}

// Run executes the stages in order for c. It returns Next when every
// applicable stage continued, Halt when one finalized the response, and
// Fail when one failed or panicked.
func (ch *Chain) Run(c *Context) Result {
	for _, e := range ch.entries {
		if !prefixMatches(e.prefix, c.Path()) {
			continue
		}

		if res := runStage(c, e.stage); !res.IsNext() {
			return res
		}
	}

	return Next()
}

// runStage invokes a single stage, converting panics into failures and
// enforcing the halt/written contract.
func runStage(c *Context, stage StageFunc) (res Result) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			res = Fail(&PanicError{Value: v, Stack: debug.Stack()})
		}
	}()

	res = stage(c)

	switch {
	case res.action == actionFail:
		return res
	case c.Writer.Written():
		return Halt()
	case res.action == actionHalt:
		return Fail(ErrNoResponse)
	}

	return res
}

func runErrorStage(c *Context, stage ErrorStageFunc, err error) (res Result) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			res = Fail(&PanicError{Value: v, Stack: debug.Stack()})
		}
	}()

	return stage(c, err)
}

func normalizePrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return ""
	}

	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	return strings.TrimSuffix(prefix, "/")
}

// prefixMatches reports whether path lies at or below prefix on a segment
// boundary: "/api" covers "/api" and "/api/users" but not "/apix".
func prefixMatches(prefix, path string) bool {
	if prefix == "" {
		return true
	}

	if !strings.HasPrefix(path, prefix) {
		return false
	}

	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Adapt turns net/http middleware into a stage. The middleware must do its
// work before calling next: when it calls next the chain continues with the
// request it passed along, otherwise the stage halts.
func Adapt(mw MiddlewareFunc) StageFunc {
	if mw == nil {
		panic("mux: nil middleware passed to Adapt")
	}

	return func(c *Context) Result {
		var (
			called bool
			next   *http.Request
		)

		h := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			called = true
			next = r
		}))
		h.ServeHTTP(c.Writer, c.Request)

		if called {
			c.SetRequest(next)
			return Next()
		}

		return Halt()
	}
}

// WrapHandler turns a plain http.Handler into a terminal stage. A handler
// that writes nothing produces an empty 200 response, as net/http would.
func WrapHandler(h http.Handler) StageFunc {
	if h == nil {
		panic("mux: nil handler passed to WrapHandler")
	}

	return func(c *Context) Result {
		h.ServeHTTP(c.Writer, c.Request)
		if !c.Writer.Written() {
			c.Writer.WriteHeader(http.StatusOK)
		}

		return Halt()
	}
}
