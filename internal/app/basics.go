package app

import (
	"net/http"

	"github.com/vitalvas/waypoint/mux"
)

// buildBasics serves two static pages.
func buildBasics(_ *Deps, r *mux.Router) error {
	r.Get("/", htmlPage("Hello World! 欢迎来到 Waypoint 世界！"))
	r.Get("/about", htmlPage("关于我们"))

	return nil
}

func htmlPage(body string) mux.StageFunc {
	return func(c *mux.Context) mux.Result {
		return c.HTML(http.StatusOK, body)
	}
}
