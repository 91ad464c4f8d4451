package mux

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindUser struct {
	Name  string `json:"name" form:"name" binding:"required"`
	Email string `json:"email" form:"email" binding:"required,email"`
	Age   int    `json:"age" form:"age" binding:"gte=0,lte=150"`
}

func TestContextBind(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		c := newTestContext(http.MethodPost, "/")
		c.SetBody(map[string]any{"name": "tobi"}, []byte(`{"name":"tobi","email":"tobi@example.com","age":3}`))

		var u bindUser
		require.NoError(t, c.Bind(&u))
		assert.Equal(t, bindUser{Name: "tobi", Email: "tobi@example.com", Age: 3}, u)
	})

	t.Run("form fields", func(t *testing.T) {
		c := newTestContext(http.MethodPost, "/")
		c.SetForm(url.Values{"name": {"loki"}, "email": {"loki@example.com"}, "age": {"7"}})

		var u bindUser
		require.NoError(t, c.Bind(&u))
		assert.Equal(t, bindUser{Name: "loki", Email: "loki@example.com", Age: 7}, u)
	})

	t.Run("query fallback", func(t *testing.T) {
		c := newTestContext(http.MethodGet, "/?name=jane&email=jane@example.com")

		var u bindUser
		require.NoError(t, c.Bind(&u))
		assert.Equal(t, "jane", u.Name)
	})

	t.Run("validation failure is a 400", func(t *testing.T) {
		c := newTestContext(http.MethodPost, "/")
		c.SetBody(nil, []byte(`{"name":"","email":"nope"}`))

		var u bindUser
		err := c.Bind(&u)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, StatusCode(err))
		assert.Contains(t, PublicMessage(err), "Name failed required")
		assert.Contains(t, PublicMessage(err), "Email failed email")
	})

	t.Run("malformed json is a 400", func(t *testing.T) {
		c := newTestContext(http.MethodPost, "/")
		c.SetBody(nil, []byte(`{"name":`))

		var u bindUser
		err := c.Bind(&u)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, StatusCode(err))
		assert.Equal(t, "invalid request payload", PublicMessage(err))
	})
}

func TestContextBindQuery(t *testing.T) {
	type search struct {
		Q     string `form:"q" binding:"required"`
		Limit int    `form:"limit"`
	}

	c := newTestContext(http.MethodGet, "/search?q=go&limit=5")
	var s search
	require.NoError(t, c.BindQuery(&s))
	assert.Equal(t, search{Q: "go", Limit: 5}, s)

	c = newTestContext(http.MethodGet, "/search")
	var missing search
	err := c.BindQuery(&missing)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Contains(t, PublicMessage(err), "Q failed required")
}
