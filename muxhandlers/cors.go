package muxhandlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/vitalvas/waypoint/mux"
)

// ErrWildcardCredentials is returned when AllowedOrigins contains "*" and
// AllowCredentials is true.
var ErrWildcardCredentials = errors.New("wildcard origin \"*\" cannot be used with AllowCredentials; use AllowOriginFunc instead")

// ErrMultipleWildcards is returned for an origin pattern with more than one
// "*".
var ErrMultipleWildcards = errors.New("cors: origin pattern contains multiple wildcards")

// CORSConfig configures the CORS stage.
//
// References:
//   - CORS protocol: https://fetch.spec.whatwg.org/#http-cors-protocol
//   - Web Origin:    https://www.rfc-editor.org/rfc/rfc6454
type CORSConfig struct {
	// AllowedOrigins lists exact origins, "*", or subdomain patterns like
	// "https://*.example.com".
	AllowedOrigins []string

	// AllowOriginFunc is consulted when no AllowedOrigins entry matches.
	AllowOriginFunc func(origin string) bool

	// AllowedMethods overrides the advertised methods. When empty the
	// methods registered on the router for the request path are used.
	AllowedMethods []string

	// AllowedHeaders lists the request headers a client may send. When empty
	// or "*", Access-Control-Request-Headers is reflected.
	AllowedHeaders []string

	ExposeHeaders []string

	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Negative values
	// send "0", zero omits the header.
	MaxAge int
}

type wildcardPattern struct {
	prefix string
	suffix string
}

// CORSStage returns a stage that implements the CORS protocol. Register it
// globally: preflight requests are answered with 204 before routing, so they
// do not need an OPTIONS route.
func CORSStage(cfg CORSConfig) (mux.StageFunc, error) {
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")
	if wildcard && cfg.AllowCredentials {
		return nil, ErrWildcardCredentials
	}

	exact, patterns, err := parseOrigins(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	isAllowed := func(origin string) bool {
		if matchOrigin(strings.ToLower(origin), exact, patterns) {
			return true
		}

		return cfg.AllowOriginFunc != nil && cfg.AllowOriginFunc(origin)
	}

	reflectHeaders := len(cfg.AllowedHeaders) == 0 || slices.Contains(cfg.AllowedHeaders, "*")

	return func(c *mux.Context) mux.Result {
		h := c.Writer.Header()

		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			if !wildcard {
				h.Add("Vary", "Origin")
			}
			return mux.Next()
		}

		if !isAllowed(origin) {
			return mux.Next()
		}

		if wildcard {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}

		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Method() != http.MethodOptions || c.Request.Header.Get("Access-Control-Request-Method") == "" {
			if len(cfg.ExposeHeaders) > 0 {
				h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ","))
			}
			return mux.Next()
		}

		methods := cfg.AllowedMethods
		if len(methods) == 0 {
			methods = c.Router().Methods(c.Request.URL.EscapedPath())
		}

		if len(methods) > 0 {
			h.Set("Access-Control-Allow-Methods", strings.Join(methods, ","))
		}

		if reflectHeaders {
			if reqHeaders := c.Request.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
		} else {
			h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ","))
		}

		if cfg.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		} else if cfg.MaxAge < 0 {
			h.Set("Access-Control-Max-Age", "0")
		}

		h.Add("Vary", "Access-Control-Request-Method")
		h.Add("Vary", "Access-Control-Request-Headers")

		return c.NoContent(http.StatusNoContent)
	}, nil
}

// parseOrigins lowercases the origins and splits them into exact matches and
// wildcard patterns.
func parseOrigins(origins []string) ([]string, []wildcardPattern, error) {
	var exact []string
	var patterns []wildcardPattern

	for _, o := range origins {
		if o == "*" {
			exact = append(exact, o)
			continue
		}

		lower := strings.ToLower(o)

		prefix, suffix, found := strings.Cut(lower, "*")
		if !found {
			exact = append(exact, lower)
			continue
		}

		if strings.Contains(suffix, "*") {
			return nil, nil, ErrMultipleWildcards
		}

		patterns = append(patterns, wildcardPattern{prefix: prefix, suffix: suffix})
	}

	return exact, patterns, nil
}

func matchOrigin(origin string, exact []string, patterns []wildcardPattern) bool {
	for _, o := range exact {
		if o == "*" || o == origin {
			return true
		}
	}

	for _, wp := range patterns {
		if len(origin) >= len(wp.prefix)+len(wp.suffix) &&
			strings.HasPrefix(origin, wp.prefix) &&
			strings.HasSuffix(origin, wp.suffix) {
			return true
		}
	}

	return false
}
