package muxhandlers

import (
	"net/http"
	"net/http/httptest"

	"github.com/vitalvas/waypoint/mux"
)

// okRouter returns a router with the stages registered globally and a single
// catch-all route that answers "ok".
func okRouter(stages ...mux.StageFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(stages...)
	r.All("/*", func(c *mux.Context) mux.Result {
		return c.Text(http.StatusOK, "ok")
	})

	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}
