package muxhandlers

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/vitalvas/waypoint/mux"
)

// ErrStaticFilesNoFS is returned when StaticFilesConfig.FS is nil.
var ErrStaticFilesNoFS = errors.New("static files: file system must not be nil")

// StaticFilesConfig configures the static files stage.
type StaticFilesConfig struct {
	// FS is the file system to serve from, e.g. os.DirFS or embed.FS.
	FS fs.FS

	// Prefix is the URL path the files are mounted at. Defaults to "/".
	Prefix string

	// CacheControl, when set, is sent with every served file.
	CacheControl string
}

// StaticFilesStage returns a stage that serves files from FS for GET and
// HEAD requests. Requests for missing files, and for directories without an
// index.html, continue down the chain so routes can still answer them.
func StaticFilesStage(cfg StaticFilesConfig) (mux.StageFunc, error) {
	if cfg.FS == nil {
		return nil, ErrStaticFilesNoFS
	}

	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	fileServer := http.FileServerFS(cfg.FS)
	cacheControl := cfg.CacheControl

	return func(c *mux.Context) mux.Result {
		if c.Method() != http.MethodGet && c.Method() != http.MethodHead {
			return mux.Next()
		}

		name, ok := strings.CutPrefix(c.Path(), prefix)
		if !ok || (name != "" && !strings.HasPrefix(name, "/")) {
			return mux.Next()
		}

		if !servable(cfg.FS, name) {
			return mux.Next()
		}

		if cacheControl != "" {
			c.Writer.Header().Set("Cache-Control", cacheControl)
		}

		req := c.Request.Clone(c.Context())
		u := *req.URL
		u.Path = "/" + strings.TrimPrefix(name, "/")
		u.RawPath = ""
		req.URL = &u

		fileServer.ServeHTTP(c.Writer, req)

		return mux.Halt()
	}, nil
}

// servable reports whether name is a file, or a directory holding an
// index.html.
func servable(fsys fs.FS, name string) bool {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		name = "."
	}

	stat, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}

	if !stat.IsDir() {
		return true
	}

	_, err = fs.Stat(fsys, path.Join(name, "index.html"))

	return err == nil
}
