package muxhandlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vitalvas/waypoint/mux"
)

// DefaultBodyLimit is the body size limit used when none is configured.
const DefaultBodyLimit = 100 << 10

// BodyParserConfig configures the JSON and URL-encoded body stages.
type BodyParserConfig struct {
	// Limit is the maximum body size in bytes. Defaults to DefaultBodyLimit.
	Limit int64

	// Strict restricts JSON bodies to objects and arrays.
	Strict bool
}

func (cfg BodyParserConfig) limit() int64 {
	if cfg.Limit > 0 {
		return cfg.Limit
	}

	return DefaultBodyLimit
}

// JSONBodyStage returns a stage that decodes application/json (and +json)
// bodies into Context.Body. The raw bytes are kept for Context.Bind. An empty
// body decodes to an empty object. Other content types are left untouched.
func JSONBodyStage(cfg BodyParserConfig) mux.StageFunc {
	limit := cfg.limit()
	strict := cfg.Strict

	return func(c *mux.Context) mux.Result {
		ct := c.ContentType()
		if ct != "application/json" && !strings.HasSuffix(ct, "+json") {
			return mux.Next()
		}

		raw, err := readBody(c.Request, limit)
		if err != nil {
			return mux.Fail(err)
		}

		if len(bytes.TrimSpace(raw)) == 0 {
			c.SetBody(map[string]any{}, []byte("{}"))
			return mux.Next()
		}

		if strict {
			if first := bytes.TrimSpace(raw)[0]; first != '{' && first != '[' {
				return mux.Fail(mux.NewHTTPError(http.StatusBadRequest, "JSON body must be an object or an array"))
			}
		}

		var body any
		if err := json.Unmarshal(raw, &body); err != nil {
			return mux.Fail(mux.NewHTTPError(http.StatusBadRequest, "invalid JSON body").Wrap(err))
		}

		c.SetBody(body, raw)

		return mux.Next()
	}
}

// URLEncodedBodyStage returns a stage that decodes
// application/x-www-form-urlencoded bodies into form fields.
func URLEncodedBodyStage(cfg BodyParserConfig) mux.StageFunc {
	limit := cfg.limit()

	return func(c *mux.Context) mux.Result {
		if c.ContentType() != "application/x-www-form-urlencoded" {
			return mux.Next()
		}

		raw, err := readBody(c.Request, limit)
		if err != nil {
			return mux.Fail(err)
		}

		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return mux.Fail(mux.NewHTTPError(http.StatusBadRequest, "invalid form body").Wrap(err))
		}

		c.SetForm(form)

		return mux.Next()
	}
}

// readBody reads at most limit bytes. Larger bodies fail with
// *http.MaxBytesError.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	if r.ContentLength > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, mux.NewHTTPError(http.StatusBadRequest, "failed to read request body").Wrap(err)
	}

	if int64(len(raw)) > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}

	return raw, nil
}
