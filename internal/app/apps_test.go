package app

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/waypoint/internal/config"
)

func TestBasicsApp(t *testing.T) {
	r := newTestRouter(t, "basics", nil)

	tests := []struct {
		path string
		code int
		body string
	}{
		{path: "/", code: http.StatusOK, body: "Hello World! 欢迎来到 Waypoint 世界！"},
		{path: "/about", code: http.StatusOK, body: "关于我们"},
		{path: "/about/", code: http.StatusOK, body: "关于我们"},
		{path: "/missing", code: http.StatusNotFound, body: `{"error":"Not Found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(r, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.body, strings.TrimSpace(rec.Body.String()))
		})
	}

	t.Run("HEAD", func(t *testing.T) {
		rec := do(r, http.MethodHead, "/", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestMethodsApp(t *testing.T) {
	r := newTestRouter(t, "methods", nil)

	t.Run("list", func(t *testing.T) {
		rec := get(r, "/api/users")
		require.Equal(t, http.StatusOK, rec.Code)

		var users []User
		decodeJSON(t, rec, &users)
		assert.Equal(t, sampleUsers(), users)
	})

	t.Run("create", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/users", strings.NewReader(`{"name":"A","email":"a@x.com"}`), "application/json")
		require.Equal(t, http.StatusCreated, rec.Code)

		var payload struct {
			Message string `json:"message"`
			User    User   `json:"user"`
		}
		decodeJSON(t, rec, &payload)
		assert.Equal(t, "用户创建成功", payload.Message)
		assert.Equal(t, User{ID: 4, Name: "A", Email: "a@x.com"}, payload.User)
	})

	t.Run("create invalid", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/users", strings.NewReader(`{"name":"A","email":"nope"}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Email")
	})

	t.Run("create malformed", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/api/users", strings.NewReader(`{"name":`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("show", func(t *testing.T) {
		rec := get(r, "/api/users/123")
		require.Equal(t, http.StatusOK, rec.Code)

		var user map[string]string
		decodeJSON(t, rec, &user)
		assert.Equal(t, map[string]string{"id": "123", "name": "用户123", "email": "user123@example.com"}, user)
	})

	t.Run("update", func(t *testing.T) {
		rec := do(r, http.MethodPut, "/api/users/1", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "用户 1 更新成功")
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(r, http.MethodDelete, "/api/users/1", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"用户 1 删除成功"}`, rec.Body.String())
	})

	t.Run("search", func(t *testing.T) {
		rec := get(r, "/api/search?q=javascript&page=2")
		require.Equal(t, http.StatusOK, rec.Code)

		var res SearchResult
		decodeJSON(t, rec, &res)
		assert.Equal(t, "javascript", res.Query)
		assert.Equal(t, 2, res.Page)
		assert.Equal(t, []string{
			"搜索结果1 for javascript",
			"搜索结果2 for javascript",
			"搜索结果3 for javascript",
		}, res.Results)
	})

	t.Run("search defaults", func(t *testing.T) {
		var res SearchResult
		decodeJSON(t, get(r, "/api/search"), &res)
		assert.Equal(t, "未指定", res.Query)
		assert.Equal(t, 1, res.Page)
	})

	t.Run("search invalid page", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(r, "/api/search?page=abc").Code)
		assert.Equal(t, http.StatusBadRequest, get(r, "/api/search?page=-1").Code)
	})

	t.Run("method not registered", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/api/users/1", nil, "").Code)
	})
}

func TestRoutingApp(t *testing.T) {
	r := newTestRouter(t, "routing", nil)

	assert.Contains(t, get(r, "/").Body.String(), "Waypoint 路由基础")

	t.Run("create from form", func(t *testing.T) {
		form := url.Values{"name": {"李雷"}, "email": {"lilei@example.com"}}
		rec := do(r, http.MethodPost, "/users", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"message":"用户创建成功","user":{"id":4,"name":"李雷","email":"lilei@example.com"}}`, rec.Body.String())
	})

	t.Run("create from form missing email", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/users", strings.NewReader("name=x"), "application/x-www-form-urlencoded")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("search", func(t *testing.T) {
		var res SearchResult
		decodeJSON(t, get(r, "/search?q=go"), &res)
		assert.Equal(t, "go", res.Query)
	})

	t.Run("named routes", func(t *testing.T) {
		route := r.Route("users.show")
		require.NotNil(t, route)

		path, err := route.URLPath("id", "9")
		require.NoError(t, err)
		assert.Equal(t, "/users/9", path)
	})
}

func TestMiddlewareApp(t *testing.T) {
	r := newTestRouter(t, "middleware", nil)

	t.Run("global stage runs everywhere", func(t *testing.T) {
		assert.Equal(t, "on", get(r, "/").Header().Get("X-Custom-Logger"))
		assert.Equal(t, "on", get(r, "/nowhere").Header().Get("X-Custom-Logger"))
	})

	t.Run("scoped stage runs under its prefix only", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/profile", strings.NewReader(`{"name":"tobi"}`), "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "on", rec.Header().Get("X-Profile-Scope"))
		assert.JSONEq(t, `{"message":"数据接收成功!","data":{"name":"tobi"}}`, rec.Body.String())

		assert.Empty(t, get(r, "/").Header().Get("X-Profile-Scope"))
		assert.Empty(t, get(r, "/profilex").Header().Get("X-Profile-Scope"))
	})

	t.Run("form body", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/profile", strings.NewReader("city=beijing"), "application/x-www-form-urlencoded")
		assert.JSONEq(t, `{"message":"数据接收成功!","data":{"city":"beijing"}}`, rec.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		rec := get(r, "/nowhere")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "抱歉，找不到您要的页面!", rec.Body.String())
	})

	t.Run("error channel", func(t *testing.T) {
		rec := get(r, "/error")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"message":"Internal Server Error","error":"服务器发生了一个意外错误！"}`, rec.Body.String())
	})

	t.Run("client error keeps its status", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/profile", strings.NewReader(`{"name":`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "服务器发生了一个意外错误！")
	})
}

type uploadPart struct {
	field, name, content string
}

func multipartBody(t *testing.T, parts ...uploadPart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func photos(n int) []uploadPart {
	parts := make([]uploadPart, 0, n)
	for i := range n {
		parts = append(parts, uploadPart{field: "photos", name: fmt.Sprintf("p%d.txt", i), content: "photo"})
	}

	return parts
}

func TestUploadsApp(t *testing.T) {
	dir := t.TempDir()
	r := newTestRouter(t, "uploads", func(c *config.Config) {
		c.Upload.Dir = dir
		c.Upload.MaxFileSize = 16
	})

	t.Run("single", func(t *testing.T) {
		body, ct := multipartBody(t, uploadPart{field: "avatar", name: "me.png", content: "\x89PNG\r\n\x1a\n"})
		rec := do(r, http.MethodPost, "/upload", body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var payload struct {
			Message string   `json:"message"`
			File    FileInfo `json:"file"`
		}
		decodeJSON(t, rec, &payload)

		assert.Equal(t, "文件上传成功", payload.Message)
		assert.Equal(t, "me.png", payload.File.OriginalName)
		assert.Equal(t, "image/png", payload.File.MimeType)
		assert.Equal(t, int64(8), payload.File.Size)
		assert.True(t, strings.HasPrefix(payload.File.Filename, "avatar-"))
		assert.Equal(t, filepath.Join(dir, payload.File.Filename), payload.File.Path)

		_, err := os.Stat(payload.File.Path)
		assert.NoError(t, err)
	})

	t.Run("single without file", func(t *testing.T) {
		body, ct := multipartBody(t)
		rec := do(r, http.MethodPost, "/upload", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"没有上传文件"}`, rec.Body.String())
	})

	t.Run("three files", func(t *testing.T) {
		body, ct := multipartBody(t, photos(3)...)
		rec := do(r, http.MethodPost, "/upload-multiple", body, ct)
		require.Equal(t, http.StatusOK, rec.Code)

		var payload struct {
			Files []FileInfo `json:"files"`
		}
		decodeJSON(t, rec, &payload)
		assert.Len(t, payload.Files, 3)
	})

	t.Run("six files", func(t *testing.T) {
		before, err := os.ReadDir(dir)
		require.NoError(t, err)

		body, ct := multipartBody(t, photos(6)...)
		rec := do(r, http.MethodPost, "/upload-multiple", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var payload uploadError
		decodeJSON(t, rec, &payload)
		assert.Equal(t, "文件上传错误", payload.Error)
		assert.Equal(t, "Too many files: photos", payload.Message)

		after, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("wrong field", func(t *testing.T) {
		body, ct := multipartBody(t, uploadPart{field: "other", name: "x.txt", content: "x"})
		rec := do(r, http.MethodPost, "/upload", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"上传文件数量超过限制","message":"您上传的文件数量超过了允许的最大数量"}`, rec.Body.String())
	})

	t.Run("file too large", func(t *testing.T) {
		body, ct := multipartBody(t, uploadPart{field: "avatar", name: "big.txt", content: strings.Repeat("x", 17)})
		rec := do(r, http.MethodPost, "/upload", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"文件大小超过限制","message":"您上传的文件大小超过了允许的最大大小"}`, rec.Body.String())
	})

	t.Run("user details", func(t *testing.T) {
		assert.JSONEq(t, `{"id":"1222","name":"John Doe"}`, get(r, "/user/1222").Body.String())
		assert.JSONEq(t,
			`{"id":"1222","name":"John Doe","email":"john@example.com","details":"完整的用户详细信息"}`,
			get(r, "/user/1222?details=true").Body.String(),
		)
	})

	t.Run("create user", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/user", strings.NewReader(`{"name":"张三","age":30}`), "application/json")
		require.Equal(t, http.StatusCreated, rec.Code)

		var payload struct {
			Message string         `json:"message"`
			User    map[string]any `json:"user"`
		}
		decodeJSON(t, rec, &payload)
		assert.Equal(t, "张三", payload.User["name"])
		assert.Equal(t, float64(30), payload.User["age"])
		assert.NotZero(t, payload.User["id"])
	})

	t.Run("create user from array", func(t *testing.T) {
		rec := do(r, http.MethodPost, "/user", strings.NewReader(`[1,2]`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("hello", func(t *testing.T) {
		rec := get(r, "/hello")
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<h1>Hello World!</h1>")
	})

	t.Run("error", func(t *testing.T) {
		rec := get(r, "/error")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"服务器发生错误!"}`, rec.Body.String())
	})

	t.Run("not found", func(t *testing.T) {
		rec := get(r, "/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"找不到请求的端点"}`, rec.Body.String())
	})
}

func TestUploadsAppServerError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	r := newTestRouter(t, "uploads", func(c *config.Config) {
		c.Upload.Dir = file
	})

	body, ct := multipartBody(t, uploadPart{field: "avatar", name: "a.txt", content: "a"})
	rec := do(r, http.MethodPost, "/upload", body, ct)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"服务器内部错误","message":"服务器发生了意外错误"}`, rec.Body.String())
}

func TestViewsApp(t *testing.T) {
	r := newTestRouter(t, "views", nil)

	t.Run("index", func(t *testing.T) {
		rec := get(r, "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<title>首页 - Waypoint</title>")
		assert.Contains(t, rec.Body.String(), "欢迎来到模板引擎示例")
	})

	t.Run("users", func(t *testing.T) {
		body := get(r, "/users").Body.String()
		assert.Contains(t, body, `<a href="/user/2">李四</a>`)
		assert.Contains(t, body, "管理员")
	})

	t.Run("user detail", func(t *testing.T) {
		rec := get(r, "/user/3")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "用户详情 - 王五")
		assert.Contains(t, rec.Body.String(), "wangwu@example.com")
	})

	t.Run("unknown user", func(t *testing.T) {
		for _, path := range []string{"/user/42", "/user/abc"} {
			rec := get(r, path)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Contains(t, rec.Body.String(), "找不到指定的用户")
		}
	})

	t.Run("static", func(t *testing.T) {
		rec := get(r, "/css/style.css")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
		assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	})

	t.Run("missing static falls through", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(r, "/css/missing.css").Code)
	})
}
