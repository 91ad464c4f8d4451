package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vitalvas/waypoint/mux"
	"github.com/vitalvas/waypoint/muxhandlers"
)

// basicStack mirrors the plain demo servers: request IDs, an access log and
// panic recovery.
func basicStack(d *Deps, r *mux.Router) error {
	clientIP, err := muxhandlers.ClientIPStage(muxhandlers.ClientIPConfig{})
	if err != nil {
		return err
	}

	r.Use(
		muxhandlers.RequestIDStage(muxhandlers.RequestIDConfig{GenerateFunc: muxhandlers.GenerateUUIDv7}),
		clientIP,
		muxhandlers.LoggingStage(muxhandlers.LoggingConfig{
			SkipPaths: []string{d.Config.Metrics.Path},
		}),
	)

	if d.Config.Metrics.Enabled {
		metrics, err := muxhandlers.MetricsStage(muxhandlers.MetricsConfig{Registerer: d.Registry})
		if err != nil {
			return err
		}
		r.Use(metrics)
	}

	r.UseError(muxhandlers.RecoveryStage(muxhandlers.RecoveryConfig{}))

	return nil
}

// hardenedStack adds security headers, CORS, cross-origin protection,
// per-client throttling and a request size cap on top of the basic stack.
func hardenedStack(d *Deps, r *mux.Router) error {
	if err := basicStack(d, r); err != nil {
		return err
	}

	h := d.Config.Hardened

	server, err := muxhandlers.ServerStage(muxhandlers.ServerConfig{
		HostnameEnv: []string{"POD_NAME", "HOSTNAME"},
	})
	if err != nil {
		return err
	}

	security, err := muxhandlers.SecurityHeadersStage(muxhandlers.SecurityHeadersConfig{
		HSTSMaxAge:              h.HSTSMaxAge,
		HSTSIncludeSubDomains:   true,
		CrossOriginOpenerPolicy: "same-origin",
	})
	if err != nil {
		return err
	}

	r.Use(server, security)

	if len(h.CORSOrigins) > 0 {
		cors, err := muxhandlers.CORSStage(muxhandlers.CORSConfig{
			AllowedOrigins: h.CORSOrigins,
			ExposeHeaders:  []string{"X-Request-ID"},
			MaxAge:         600,
		})
		if err != nil {
			return err
		}
		r.Use(cors)
	}

	throttle, err := muxhandlers.ThrottleStage(muxhandlers.ThrottleConfig{
		Rate:  h.Rate,
		Per:   h.Per,
		Burst: h.Burst,
	})
	if err != nil {
		return err
	}

	sizeLimit, err := muxhandlers.RequestSizeLimitStage(muxhandlers.RequestSizeLimitConfig{
		MaxBytes: requestSizeLimit(d),
	})
	if err != nil {
		return err
	}

	methodOverride, err := muxhandlers.MethodOverrideStage(muxhandlers.MethodOverrideConfig{})
	if err != nil {
		return err
	}

	contentType, err := muxhandlers.ContentTypeCheckStage(muxhandlers.ContentTypeCheckConfig{
		AllowedTypes: []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"},
	})
	if err != nil {
		return err
	}

	crossOrigin, err := crossOriginProtection(h.CORSOrigins)
	if err != nil {
		return err
	}

	r.Use(
		mux.Adapt(crossOrigin.Handler),
		throttle,
		sizeLimit,
		methodOverride,
		contentType,
	)

	return nil
}

// crossOriginProtection trusts the exact CORS origins. Wildcard patterns are
// left to the CORS stage.
func crossOriginProtection(origins []string) (*http.CrossOriginProtection, error) {
	cop := http.NewCrossOriginProtection()

	for _, origin := range origins {
		if strings.Contains(origin, "*") {
			continue
		}

		if err := cop.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("hardened: trusted origin %q: %w", origin, err)
		}
	}

	return cop, nil
}

// requestSizeLimit caps whole request bodies. Upload requests may carry the
// configured number of maximum-size files plus form overhead.
func requestSizeLimit(d *Deps) int64 {
	limit := d.Config.BodyLimit
	if limit <= 0 {
		limit = muxhandlers.DefaultBodyLimit
	}

	if up := d.Config.Upload; up.MaxFileSize > 0 && up.MaxFiles > 0 {
		limit = max(limit, up.MaxFileSize*int64(up.MaxFiles)+1<<20)
	}

	return limit
}
