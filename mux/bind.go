package mux

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Bind decodes the request payload into v and validates it using the
// `binding` struct tags. The source depends on what the body parsing stages
// attached: raw JSON, form fields, or, when no body was parsed, the query
// string. Failures are returned as 400 HTTPErrors.
func (c *Context) Bind(v any) error {
	var err error

	switch {
	case c.rawBody != nil:
		err = binding.JSON.BindBody(c.rawBody, v)

	case c.form != nil:
		if err = binding.MapFormWithTag(v, c.form, "form"); err == nil {
			err = binding.Validator.ValidateStruct(v)
		}

	default:
		err = binding.Query.Bind(c.Request, v)
	}

	if err != nil {
		return NewHTTPError(http.StatusBadRequest, bindMessage(err)).Wrap(err)
	}

	return nil
}

// BindQuery decodes and validates the query string into v using `form` tags.
func (c *Context) BindQuery(v any) error {
	if err := binding.Query.Bind(c.Request, v); err != nil {
		return NewHTTPError(http.StatusBadRequest, bindMessage(err)).Wrap(err)
	}

	return nil
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request payload"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}

	return strings.Join(msgs, "; ")
}
