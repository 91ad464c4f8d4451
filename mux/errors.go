package mux

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

var (
	// ErrNoResponse is raised when a stage halts the chain without writing
	// a response.
	ErrNoResponse = errors.New("mux: stage halted without finalizing the response")

	// ErrResponseFinalized is returned when a response is finalized twice.
	ErrResponseFinalized = errors.New("mux: response already finalized")

	// ErrNilFailure replaces a nil error passed to Fail.
	ErrNilFailure = errors.New("mux: stage failed with a nil error")

	// ErrNoRenderer is returned by Context.Render when the router has no
	// Renderer configured.
	ErrNoRenderer = errors.New("mux: no renderer configured")
)

// HTTPError is a failure that carries the status code and the message that
// is safe to return to the caller.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

// NewHTTPError returns an HTTPError. An empty message defaults to the status
// text.
func NewHTTPError(code int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}

	return &HTTPError{Code: code, Message: message}
}

// Wrap attaches an underlying cause.
func (e *HTTPError) Wrap(err error) *HTTPError {
	e.Err = err
	return e
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode implements the statusCoder contract.
func (e *HTTPError) StatusCode() int {
	return e.Code
}

type statusCoder interface {
	StatusCode() int
}

// StatusCode derives the response status for err: the code of any error in
// the chain that reports one, 413 for body limit violations, 500 otherwise.
func StatusCode(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}

	return http.StatusInternalServerError
}

// PublicMessage returns the message that may be shown to the caller.
// Server errors never leak their details.
func PublicMessage(err error) string {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		return http.StatusText(http.StatusInternalServerError)
	}

	var he *HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if e, ok := sc.(error); ok {
			return e.Error()
		}
	}

	return http.StatusText(code)
}

type errorEntry struct {
	prefix string
	stage  ErrorStageFunc
}

// handleError routes err through the registered error stages and falls back
// to the default error stage. It always leaves the response finalized.
func (r *Router) handleError(c *Context, err error) {
	if c.Writer.Written() {
		c.Logger().Error("failure after response was written", zap.Error(err))
		return
	}

	for _, e := range r.errorStages {
		if !prefixMatches(e.prefix, c.Path()) {
			continue
		}

		res := runErrorStage(c, e.stage, err)
		if c.Writer.Written() {
			if res.action == actionFail {
				c.Logger().Error("error stage failed after writing", zap.Error(res.err))
			}
			return
		}

		switch res.action {
		case actionFail:
			err = res.err
		case actionHalt:
			err = errors.Join(err, ErrNoResponse)
		}
	}

	defaultErrorStage(c, err)
}

// defaultErrorStage writes a JSON error body and logs server-side failures.
func defaultErrorStage(c *Context, err error) {
	code := StatusCode(err)

	if code >= http.StatusInternalServerError {
		fields := []zap.Field{zap.Error(err), zap.Int("status", code)}

		var pe *PanicError
		if errors.As(err, &pe) {
			fields = append(fields, zap.ByteString("stack", pe.Stack))
		}

		c.Logger().Error("request failed", fields...)
	}

	c.JSON(code, map[string]string{"error": PublicMessage(err)})
}
