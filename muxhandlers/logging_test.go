package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/waypoint/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingStage(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	r := mux.NewRouter()
	r.Use(RequestIDStage(RequestIDConfig{}), LoggingStage(LoggingConfig{Logger: logger, SkipPaths: []string{"/healthz"}}))
	r.Get("/users/:id", func(c *mux.Context) mux.Result { return c.Text(http.StatusOK, "user") })
	r.Get("/boom", func(_ *mux.Context) mux.Result { return mux.Fail(assert.AnError) })
	r.Get("/healthz", func(c *mux.Context) mux.Result { return c.NoContent(http.StatusNoContent) })

	do(r, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "GET", first["method"])
	assert.Equal(t, "/users/42", first["path"])
	assert.Equal(t, "/users/:id", first["route"])
	assert.Equal(t, int64(http.StatusOK), first["status"])
	assert.Equal(t, int64(4), first["size"])
	assert.NotEmpty(t, first["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "unmatched", entries[1].ContextMap()["route"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[2].ContextMap()["status"])
}

func TestLoggingStageRouterLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := mux.NewRouter()
	r.Logger = zap.New(core)
	r.Use(LoggingStage(LoggingConfig{}))
	r.Get("/", func(c *mux.Context) mux.Result { return c.Text(http.StatusOK, "ok") })

	do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 1, logs.FilterMessage("request").Len())
}

func TestLevelForStatus(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, levelForStatus(http.StatusOK))
	assert.Equal(t, zapcore.InfoLevel, levelForStatus(http.StatusFound))
	assert.Equal(t, zapcore.WarnLevel, levelForStatus(http.StatusNotFound))
	assert.Equal(t, zapcore.ErrorLevel, levelForStatus(http.StatusBadGateway))
}

func TestLoggingStageSlowRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := mux.NewRouter()
	r.Use(LoggingStage(LoggingConfig{Logger: zap.New(core), SlowThreshold: time.Millisecond}))
	r.Get("/slow", func(c *mux.Context) mux.Result {
		time.Sleep(5 * time.Millisecond)
		return c.Text(http.StatusOK, "done")
	})

	do(r, httptest.NewRequest(http.MethodGet, "/slow", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}
