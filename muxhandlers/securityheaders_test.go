package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/waypoint/mux"
)

func TestSecurityHeadersStage(t *testing.T) {
	t.Run("invalid frame option", func(t *testing.T) {
		_, err := SecurityHeadersStage(SecurityHeadersConfig{FrameOption: "ALLOW-FROM"})
		assert.ErrorIs(t, err, ErrInvalidFrameOption)
	})

	t.Run("defaults", func(t *testing.T) {
		stage, err := SecurityHeadersStage(SecurityHeadersConfig{})
		require.NoError(t, err)

		rec := do(okRouter(stage), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
		assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	})

	t.Run("full config", func(t *testing.T) {
		stage, err := SecurityHeadersStage(SecurityHeadersConfig{
			DisableContentTypeNosniff: true,
			FrameOption:               "SAMEORIGIN",
			ReferrerPolicy:            "no-referrer",
			HSTSMaxAge:                31536000,
			HSTSIncludeSubDomains:     true,
			HSTSPreload:               true,
			CrossOriginOpenerPolicy:   "same-origin",
			ContentSecurityPolicy:     "default-src 'self'",
			PermissionsPolicy:         "camera=()",
		})
		require.NoError(t, err)

		rec := do(okRouter(stage), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Empty(t, rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
		assert.Equal(t, "max-age=31536000; includeSubDomains; preload", rec.Header().Get("Strict-Transport-Security"))
		assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Opener-Policy"))
		assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
		assert.Equal(t, "camera=()", rec.Header().Get("Permissions-Policy"))
	})

	t.Run("headers set on not found", func(t *testing.T) {
		stage, err := SecurityHeadersStage(SecurityHeadersConfig{})
		require.NoError(t, err)

		r := mux.NewRouter()
		r.Use(stage)

		rec := do(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	})
}
