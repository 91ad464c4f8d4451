package muxhandlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vitalvas/waypoint/mux"
)

// ErrNoAllowedTypes is returned when ContentTypeCheckConfig.AllowedTypes is
// empty.
var ErrNoAllowedTypes = errors.New("content type check: at least one allowed content type is required")

// ContentTypeCheckConfig configures the Content-Type Check stage.
type ContentTypeCheckConfig struct {
	// AllowedTypes is the set of acceptable media types. Matching is
	// case-insensitive and ignores parameters. Required.
	AllowedTypes []string

	// Methods is the set of methods whose Content-Type is checked.
	// Defaults to POST, PUT, PATCH.
	Methods []string
}

var defaultCheckedMethods = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
}

// ContentTypeCheckStage returns a stage that fails with 415 Unsupported
// Media Type when a checked request carries a missing or unlisted
// Content-Type.
func ContentTypeCheckStage(cfg ContentTypeCheckConfig) (mux.StageFunc, error) {
	if len(cfg.AllowedTypes) == 0 {
		return nil, ErrNoAllowedTypes
	}

	methods := cfg.Methods
	if methods == nil {
		methods = defaultCheckedMethods
	}

	methodSet := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		methodSet[m] = struct{}{}
	}

	allowedSet := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowedSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	return func(c *mux.Context) mux.Result {
		if _, check := methodSet[c.Method()]; !check {
			return mux.Next()
		}

		if _, ok := allowedSet[strings.ToLower(c.ContentType())]; !ok {
			return mux.Fail(mux.NewHTTPError(http.StatusUnsupportedMediaType, ""))
		}

		return mux.Next()
	}, nil
}
