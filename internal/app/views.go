package app

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/vitalvas/waypoint/mux"
	"github.com/vitalvas/waypoint/muxhandlers"
	"github.com/vitalvas/waypoint/render"
)

//go:embed views public
var assets embed.FS

// Profile is a user shown by the views app.
type Profile struct {
	ID    int
	Name  string
	Email string
	Age   int
	Role  string
}

func sampleProfiles() []Profile {
	return []Profile{
		{ID: 1, Name: "张三", Email: "zhangsan@example.com", Age: 25, Role: "用户"},
		{ID: 2, Name: "李四", Email: "lisi@example.com", Age: 30, Role: "管理员"},
		{ID: 3, Name: "王五", Email: "wangwu@example.com", Age: 28, Role: "用户"},
	}
}

// buildViews renders HTML pages with a shared layout and serves the public
// assets.
func buildViews(_ *Deps, r *mux.Router) error {
	views, err := fs.Sub(assets, "views")
	if err != nil {
		return err
	}

	engine, err := render.New(render.Config{
		FS: views,
		Funcs: template.FuncMap{
			"year": func() int { return time.Now().Year() },
		},
	})
	if err != nil {
		return err
	}
	r.Renderer = engine

	public, err := fs.Sub(assets, "public")
	if err != nil {
		return err
	}

	static, err := muxhandlers.StaticFilesStage(muxhandlers.StaticFilesConfig{
		FS:           public,
		CacheControl: "public, max-age=3600",
	})
	if err != nil {
		return err
	}
	r.Use(static)

	profiles := sampleProfiles()

	r.Get("/", func(c *mux.Context) mux.Result {
		return c.Render(http.StatusOK, "index", map[string]any{
			"Title":   "首页",
			"Message": "欢迎来到模板引擎示例",
		})
	})

	r.Get("/about", func(c *mux.Context) mux.Result {
		return c.Render(http.StatusOK, "about", map[string]any{
			"Title":       "关于",
			"Description": "这是一个使用 html/template 布局渲染的示例应用",
		})
	})

	r.Get("/users", func(c *mux.Context) mux.Result {
		return c.Render(http.StatusOK, "users", map[string]any{
			"Title": "用户列表",
			"Users": profiles,
		})
	})

	r.Get("/user/:id", func(c *mux.Context) mux.Result {
		id, err := strconv.Atoi(c.Param("id"))
		if err == nil {
			for _, p := range profiles {
				if p.ID == id {
					return c.Render(http.StatusOK, "user-detail", map[string]any{
						"Title": "用户详情 - " + p.Name,
						"User":  p,
					})
				}
			}
		}

		return c.Render(http.StatusNotFound, "error", map[string]any{
			"Title":   "用户未找到",
			"Message": "找不到指定的用户",
		})
	})

	return nil
}
