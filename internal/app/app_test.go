package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/waypoint/internal/config"
	"github.com/vitalvas/waypoint/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T, app string, modify func(*config.Config)) *mux.Router {
	t.Helper()

	cfg := config.Default()
	cfg.App = app
	cfg.Upload.Dir = t.TempDir()
	if modify != nil {
		modify(cfg)
	}
	require.NoError(t, cfg.Validate())

	r, err := New(Deps{Config: cfg})
	require.NoError(t, err)

	return r
}

func do(r http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	return do(r, http.MethodGet, target, nil, "")
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"basics", "methods", "middleware", "routing", "uploads", "views"}, Names())
}

func TestNew(t *testing.T) {
	t.Run("unknown app", func(t *testing.T) {
		cfg := config.Default()
		cfg.App = "day9"

		_, err := New(Deps{Config: cfg})
		assert.ErrorIs(t, err, ErrUnknownApp)
	})

	t.Run("defaults", func(t *testing.T) {
		r, err := New(Deps{})
		require.NoError(t, err)

		rec := get(r, "/about")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	for _, name := range Names() {
		t.Run("builds "+name, func(t *testing.T) {
			for _, stack := range []string{config.StackBasic, config.StackHardened} {
				newTestRouter(t, name, func(c *config.Config) {
					c.Stack = stack
					c.Metrics.Enabled = true
				})
			}
		})
	}
}

func TestBasicStack(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	cfg := config.Default()
	r, err := New(Deps{Config: cfg, Logger: zap.New(core)})
	require.NoError(t, err)

	rec := get(r, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "basics", entries[0].ContextMap()["app"])
	assert.Equal(t, "/", entries[0].ContextMap()["route"])
}

func TestHardenedStack(t *testing.T) {
	r := newTestRouter(t, "methods", func(c *config.Config) {
		c.Stack = config.StackHardened
		c.Hardened.CORSOrigins = []string{"https://app.example.com"}
	})

	t.Run("security headers", func(t *testing.T) {
		rec := get(r, "/api/users")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
		assert.NotEmpty(t, rec.Header().Get("X-Server-Hostname"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET,POST", rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("unsupported media type", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/users", strings.NewReader("name=a"), "text/plain")
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("cross origin post rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Sec-Fetch-Site", "cross-site")

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("cross origin post from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"Dana","email":"dana@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Sec-Fetch-Site", "cross-site")

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("method override", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users/7", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-HTTP-Method-Override", http.MethodDelete)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "删除成功")
	})

	t.Run("declared body over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = 1 << 30

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestCrossOriginProtection(t *testing.T) {
	_, err := crossOriginProtection([]string{"https://app.example.com", "https://*.example.com"})
	assert.NoError(t, err)

	_, err = crossOriginProtection([]string{"https://app.example.com/path"})
	assert.Error(t, err)
}

func TestRequestSizeLimit(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, int64(5*(5<<20)+1<<20), requestSizeLimit(&Deps{Config: cfg}))

	cfg.Upload.MaxFiles = 0
	assert.Equal(t, cfg.BodyLimit, requestSizeLimit(&Deps{Config: cfg}))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		reg := prometheus.NewRegistry()

		cfg := config.Default()
		cfg.Metrics.Enabled = true

		r, err := New(Deps{Config: cfg, Registry: reg})
		require.NoError(t, err)

		get(r, "/about")

		rec := get(r, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `waypoint_http_requests_total{method="GET",route="/about",status="200"} 1`)
	})

	t.Run("hardened requires credentials", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		require.NoError(t, err)

		r := newTestRouter(t, "basics", func(c *config.Config) {
			c.Stack = config.StackHardened
			c.Metrics.Enabled = true
			c.Hardened.BasicAuth = map[string]string{"prom": string(hash)}
		})

		rec := get(r, "/metrics")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.SetBasicAuth("prom", "secret")
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		r := newTestRouter(t, "basics", nil)
		assert.Equal(t, http.StatusNotFound, get(r, "/metrics").Code)
	})
}
