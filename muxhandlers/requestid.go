package muxhandlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/vitalvas/waypoint/mux"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID stored by RequestIDStage, or
// an empty string.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// RequestIDConfig configures the Request ID stage.
type RequestIDConfig struct {
	// HeaderName overrides the header used to propagate the request ID.
	// Defaults to "X-Request-ID".
	HeaderName string

	// GenerateFunc returns a new unique ID. Defaults to GenerateUUIDv4.
	GenerateFunc func(r *http.Request) string

	// TrustIncoming reuses an ID sent by the client instead of generating
	// a new one.
	TrustIncoming bool
}

// RequestIDStage returns a stage that generates or propagates a request ID.
// The ID is set on the request header, the response header and the request
// context.
func RequestIDStage(cfg RequestIDConfig) mux.StageFunc {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = "X-Request-ID"
	}

	generate := cfg.GenerateFunc
	if generate == nil {
		generate = GenerateUUIDv4
	}

	return func(c *mux.Context) mux.Result {
		id := ""
		if cfg.TrustIncoming {
			id = c.Request.Header.Get(headerName)
		}

		if id == "" {
			id = generate(c.Request)
		}

		if id != "" {
			c.Request.Header.Set(headerName, id)
			c.Writer.Header().Set(headerName, id)
			c.SetRequest(c.Request.WithContext(context.WithValue(c.Context(), requestIDKey{}, id)))
		}

		return mux.Next()
	}
}

// GenerateUUIDv4 returns a new UUID v4 string.
//
// Reference: https://www.rfc-editor.org/rfc/rfc9562#section-5.4
func GenerateUUIDv4(_ *http.Request) string {
	return uuid.New().String()
}

// GenerateUUIDv7 returns a new time-ordered UUID v7 string.
//
// Reference: https://www.rfc-editor.org/rfc/rfc9562#section-5.7
func GenerateUUIDv7(_ *http.Request) string {
	return uuid.Must(uuid.NewV7()).String()
}
