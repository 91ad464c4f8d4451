package app

import (
	"net/http"
	"time"

	"github.com/vitalvas/waypoint/mux"
	"github.com/vitalvas/waypoint/muxhandlers"
	"go.uber.org/zap"
)

// buildMiddleware demonstrates body parsers, a custom global stage, a
// scoped stage, a text not-found page and a catch-all error stage.
func buildMiddleware(d *Deps, r *mux.Router) error {
	parsers := muxhandlers.BodyParserConfig{Limit: d.Config.BodyLimit}

	r.Use(
		muxhandlers.JSONBodyStage(parsers),
		muxhandlers.URLEncodedBodyStage(parsers),
		requestLogger,
	)

	r.UsePrefix("/profile", profileScope)

	r.NotFound = func(c *mux.Context) mux.Result {
		return c.Text(http.StatusNotFound, "抱歉，找不到您要的页面!")
	}

	r.UseError(unexpectedError)

	r.Get("/", htmlPage("欢迎来到第三天：学习中间件！"))

	r.Post("/profile", func(c *mux.Context) mux.Result {
		c.Logger().Info("profile received", zap.Any("body", c.Body))

		return c.JSON(http.StatusOK, map[string]any{
			"message": "数据接收成功!",
			"data":    c.Body,
		})
	})

	r.Get("/error", func(_ *mux.Context) mux.Result {
		return mux.Fail(mux.NewHTTPError(http.StatusInternalServerError, "这是一个模拟的错误!"))
	})

	return nil
}

// requestLogger logs every request as it enters the chain and marks the
// response.
func requestLogger(c *mux.Context) mux.Result {
	c.Logger().Info("custom logger",
		zap.Time("timestamp", time.Now()),
		zap.String("url", c.Request.URL.RequestURI()),
	)
	c.Writer.Header().Set("X-Custom-Logger", "on")

	return mux.Next()
}

func profileScope(c *mux.Context) mux.Result {
	c.Writer.Header().Set("X-Profile-Scope", "on")
	return mux.Next()
}

// unexpectedError answers every failure with a JSON body carrying the
// public message and a fixed apology.
func unexpectedError(c *mux.Context, err error) mux.Result {
	code := mux.StatusCode(err)
	if code >= http.StatusInternalServerError {
		c.Logger().Error("unhandled error", zap.Error(err))
	}

	return c.JSON(code, map[string]string{
		"message": mux.PublicMessage(err),
		"error":   "服务器发生了一个意外错误！",
	})
}
