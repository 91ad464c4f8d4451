package muxhandlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vitalvas/waypoint/mux"
)

// ErrInvalidFrameOption is returned when SecurityHeadersConfig.FrameOption is
// not "DENY", "SAMEORIGIN" or empty.
var ErrInvalidFrameOption = errors.New("security headers: frame option must be DENY, SAMEORIGIN, or empty")

// SecurityHeadersConfig configures the Security Headers stage.
type SecurityHeadersConfig struct {
	// DisableContentTypeNosniff disables X-Content-Type-Options: nosniff.
	DisableContentTypeNosniff bool

	// FrameOption sets X-Frame-Options. Defaults to "DENY".
	FrameOption string

	// ReferrerPolicy defaults to "strict-origin-when-cross-origin".
	ReferrerPolicy string

	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds. Zero
	// omits the header.
	HSTSMaxAge int

	HSTSIncludeSubDomains bool
	HSTSPreload           bool

	CrossOriginOpenerPolicy string
	ContentSecurityPolicy   string
	PermissionsPolicy       string
}

// SecurityHeadersStage returns a stage that sets common security response
// headers before the rest of the chain runs.
func SecurityHeadersStage(cfg SecurityHeadersConfig) (mux.StageFunc, error) {
	if cfg.FrameOption != "" && cfg.FrameOption != "DENY" && cfg.FrameOption != "SAMEORIGIN" {
		return nil, ErrInvalidFrameOption
	}

	if cfg.FrameOption == "" {
		cfg.FrameOption = "DENY"
	}

	if cfg.ReferrerPolicy == "" {
		cfg.ReferrerPolicy = "strict-origin-when-cross-origin"
	}

	headers := http.Header{}
	if !cfg.DisableContentTypeNosniff {
		headers.Set("X-Content-Type-Options", "nosniff")
	}
	headers.Set("X-Frame-Options", cfg.FrameOption)
	headers.Set("Referrer-Policy", cfg.ReferrerPolicy)

	if cfg.HSTSMaxAge > 0 {
		hsts := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
		if cfg.HSTSPreload {
			hsts += "; preload"
		}
		headers.Set("Strict-Transport-Security", hsts)
	}

	optional := map[string]string{
		"Cross-Origin-Opener-Policy": cfg.CrossOriginOpenerPolicy,
		"Content-Security-Policy":    cfg.ContentSecurityPolicy,
		"Permissions-Policy":         cfg.PermissionsPolicy,
	}
	for name, value := range optional {
		if value != "" {
			headers.Set(name, value)
		}
	}

	return func(c *mux.Context) mux.Result {
		h := c.Writer.Header()
		for name, values := range headers {
			h[name] = values
		}

		return mux.Next()
	}, nil
}
