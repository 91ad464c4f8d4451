package muxhandlers

import (
	"errors"
	"net/http"

	"github.com/vitalvas/waypoint/mux"
	"go.uber.org/zap"
)

// RecoveryConfig configures the Recovery error stage.
type RecoveryConfig struct {
	// Logger receives the panic value and stack. Defaults to the router
	// logger.
	Logger *zap.Logger

	// OnPanic is invoked with the request and the recovered value.
	OnPanic func(r *http.Request, value any)
}

// RecoveryStage returns an error stage that answers stage panics with a
// plain 500 response. Other failures are passed on to the next error stage.
func RecoveryStage(cfg RecoveryConfig) mux.ErrorStageFunc {
	return func(c *mux.Context, err error) mux.Result {
		var pe *mux.PanicError
		if !errors.As(err, &pe) {
			return mux.Next()
		}

		logger := cfg.Logger
		if logger == nil {
			logger = c.Logger()
		}

		logger.Error("recovered from panic",
			zap.Any("panic", pe.Value),
			zap.ByteString("stack", pe.Stack),
			zap.String("request_id", RequestIDFromContext(c.Context())),
		)

		if cfg.OnPanic != nil {
			cfg.OnPanic(c.Request, pe.Value)
		}

		return c.Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
