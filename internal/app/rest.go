package app

import (
	"net/http"

	"github.com/vitalvas/waypoint/mux"
	"github.com/vitalvas/waypoint/muxhandlers"
)

// routeRegistrar is implemented by *mux.Router and *mux.Group.
type routeRegistrar interface {
	Get(pattern string, handler mux.StageFunc) *mux.Route
	Post(pattern string, handler mux.StageFunc) *mux.Route
	Put(pattern string, handler mux.StageFunc) *mux.Route
	Delete(pattern string, handler mux.StageFunc) *mux.Route
}

// buildMethods serves the user API under /api with one route per HTTP
// method.
func buildMethods(d *Deps, r *mux.Router) error {
	r.Use(muxhandlers.JSONBodyStage(muxhandlers.BodyParserConfig{Limit: d.Config.BodyLimit}))

	api := r.Group("/api")
	registerUsers(api)
	api.Get("/search", searchUsers)

	return nil
}

// buildRouting serves the same resource at the root with form bodies.
func buildRouting(d *Deps, r *mux.Router) error {
	parsers := muxhandlers.BodyParserConfig{Limit: d.Config.BodyLimit}
	r.Use(
		muxhandlers.URLEncodedBodyStage(parsers),
		muxhandlers.JSONBodyStage(parsers),
	)

	r.Get("/", htmlPage("欢迎来到第二天的学习 - Waypoint 路由基础！"))
	registerUsers(r)
	r.Get("/search", searchUsers)

	return nil
}

func registerUsers(g routeRegistrar) {
	g.Get("/users", listUsers).Name(routeName(g, "users.list"))
	g.Post("/users", createUser).Name(routeName(g, "users.create"))
	g.Get("/users/:id", showUser).Name(routeName(g, "users.show"))
	g.Put("/users/:id", updateUser)
	g.Delete("/users/:id", deleteUser)
}

// routeName keeps route names unique when the resource is mounted under a
// group.
func routeName(g routeRegistrar, name string) string {
	if grp, ok := g.(*mux.Group); ok {
		return grp.Prefix() + ":" + name
	}

	return name
}

func listUsers(c *mux.Context) mux.Result {
	return c.JSON(http.StatusOK, sampleUsers())
}

func createUser(c *mux.Context) mux.Result {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return mux.Fail(err)
	}

	return c.JSON(http.StatusCreated, UserMessage{
		Message: "用户创建成功",
		User:    User{ID: 4, Name: req.Name, Email: req.Email},
	})
}

func showUser(c *mux.Context) mux.Result {
	return c.JSON(http.StatusOK, userByID(c.Param("id")))
}

func updateUser(c *mux.Context) mux.Result {
	return c.JSON(http.StatusOK, updatedUser(c.Param("id")))
}

func deleteUser(c *mux.Context) mux.Result {
	return c.JSON(http.StatusOK, deletedUser(c.Param("id")))
}

func searchUsers(c *mux.Context) mux.Result {
	var q SearchQuery
	if err := c.BindQuery(&q); err != nil {
		return mux.Fail(err)
	}

	return c.JSON(http.StatusOK, search(q))
}
