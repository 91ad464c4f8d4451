package muxhandlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vitalvas/waypoint/mux"
)

// ErrInvalidOverrideMethod is returned when MethodOverrideConfig contains an
// invalid HTTP method.
var ErrInvalidOverrideMethod = errors.New("method override: allowed methods must be valid HTTP methods")

// MethodOverrideConfig configures the Method Override stage.
type MethodOverrideConfig struct {
	// HeaderNames is checked in order; the first non-empty value wins.
	// Defaults to X-HTTP-Method-Override, X-Method-Override, X-HTTP-Method.
	HeaderNames []string

	// FormField, when set, is also consulted on URL-encoded forms parsed by
	// URLEncodedBodyStage, e.g. "_method" for HTML forms.
	FormField string

	// OriginalMethods is the set of methods eligible for override.
	// Defaults to POST.
	OriginalMethods []string

	// AllowedMethods restricts the override targets. Defaults to PUT,
	// PATCH, DELETE.
	AllowedMethods []string
}

var defaultOverrideHeaders = []string{
	"X-HTTP-Method-Override",
	"X-Method-Override",
	"X-HTTP-Method",
}

var defaultOriginalMethods = []string{http.MethodPost}

var defaultOverrideMethods = []string{
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// MethodOverrideStage returns a stage that rewrites the request method from
// an override header or form field. It must be registered globally so the
// rewritten method is used for routing.
func MethodOverrideStage(cfg MethodOverrideConfig) (mux.StageFunc, error) {
	headers := cfg.HeaderNames
	if len(headers) == 0 {
		headers = defaultOverrideHeaders
	}

	originals := cfg.OriginalMethods
	if originals == nil {
		originals = defaultOriginalMethods
	}

	methods := cfg.AllowedMethods
	if methods == nil {
		methods = defaultOverrideMethods
	}

	originalSet, err := methodSet(originals)
	if err != nil {
		return nil, err
	}

	allowed, err := methodSet(methods)
	if err != nil {
		return nil, err
	}

	headerNames := append([]string(nil), headers...)
	formField := cfg.FormField

	return func(c *mux.Context) mux.Result {
		if _, ok := originalSet[c.Method()]; !ok {
			return mux.Next()
		}

		for _, h := range headerNames {
			if v := c.Request.Header.Get(h); v != "" {
				if override := strings.ToUpper(v); isAllowed(allowed, override) {
					c.Request.Method = override
					c.Request.Header.Del(h)
				}

				return mux.Next()
			}
		}

		if formField != "" && c.Form() != nil {
			if override := strings.ToUpper(c.Form().Get(formField)); isAllowed(allowed, override) {
				c.Request.Method = override
			}
		}

		return mux.Next()
	}, nil
}

func methodSet(methods []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		if m == "" || m != strings.ToUpper(m) {
			return nil, ErrInvalidOverrideMethod
		}
		set[m] = struct{}{}
	}

	return set, nil
}

func isAllowed(set map[string]struct{}, method string) bool {
	_, ok := set[method]
	return ok
}
