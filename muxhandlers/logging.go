package muxhandlers

import (
	"time"

	"github.com/vitalvas/waypoint/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig configures the access log stage.
type LoggingConfig struct {
	// Logger receives one entry per request. Defaults to the router logger.
	Logger *zap.Logger

	// SkipPaths lists request paths that are not logged, e.g. "/metrics".
	SkipPaths []string

	// SlowThreshold raises successful requests slower than it to warn level.
	// Zero disables the check.
	SlowThreshold time.Duration
}

// LoggingStage returns a stage that writes an access log entry once the
// response is finalized. Server errors are logged at error level, client
// errors and slow requests at warn level.
func LoggingStage(cfg LoggingConfig) mux.StageFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *mux.Context) mux.Result {
		if _, ok := skip[c.Path()]; ok {
			return mux.Next()
		}

		start := time.Now()

		c.OnFinish(func(c *mux.Context) {
			logger := cfg.Logger
			if logger == nil {
				logger = c.Router().Logger
			}
			if logger == nil {
				return
			}

			status := c.Writer.Status()
			elapsed := time.Since(start)

			level := levelForStatus(status)
			if cfg.SlowThreshold > 0 && elapsed > cfg.SlowThreshold && level < zapcore.WarnLevel {
				level = zapcore.WarnLevel
			}

			fields := []zap.Field{
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("route", routeLabel(c)),
				zap.Int("status", status),
				zap.Int("size", c.Writer.Size()),
				zap.Duration("duration", elapsed),
				zap.String("remote_addr", ClientIP(c)),
			}

			if id := RequestIDFromContext(c.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			if ce := logger.Check(level, "request"); ce != nil {
				ce.Write(fields...)
			}
		})

		return mux.Next()
	}
}

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// routeLabel returns the matched route pattern, keeping label cardinality
// bounded for unmatched paths.
func routeLabel(c *mux.Context) string {
	if r := c.Route(); r != nil {
		return r.Pattern()
	}

	return "unmatched"
}
