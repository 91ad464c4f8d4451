package muxhandlers

import (
	"errors"
	"net/http"

	"github.com/vitalvas/waypoint/mux"
)

// ErrInvalidMaxSize is returned when RequestSizeLimitConfig.MaxBytes is not
// greater than zero.
var ErrInvalidMaxSize = errors.New("request size limit: max size must be greater than zero")

// RequestSizeLimitConfig configures the Request Size Limit stage.
type RequestSizeLimitConfig struct {
	// MaxBytes is the maximum request body size. Must be positive.
	MaxBytes int64
}

// RequestSizeLimitStage returns a stage that caps the request body. A
// declared Content-Length above the limit fails immediately with 413;
// otherwise reads past the limit return *http.MaxBytesError, which the error
// stages map to 413.
func RequestSizeLimitStage(cfg RequestSizeLimitConfig) (mux.StageFunc, error) {
	if cfg.MaxBytes <= 0 {
		return nil, ErrInvalidMaxSize
	}

	maxBytes := cfg.MaxBytes

	return func(c *mux.Context) mux.Result {
		if c.Request.ContentLength > maxBytes {
			return mux.Fail(&http.MaxBytesError{Limit: maxBytes})
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		return mux.Next()
	}, nil
}
