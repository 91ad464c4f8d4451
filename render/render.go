// Package render renders HTML pages from a file system of html/template
// files. Every page is parsed together with a shared layout; the layout
// places the page through {{template "content" .}} and pages define that
// block:
//
//	{{define "content"}}<h1>{{.Title}}</h1>{{end}}
//
// Engine implements mux.Renderer.
package render

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
)

const (
	// DefaultLayout is the layout used when Config.Layout is empty.
	DefaultLayout = "layouts/main"

	// DefaultExt is the template file extension used when Config.Ext is
	// empty.
	DefaultExt = ".html"
)

var (
	// ErrNoFS is returned by New when Config.FS is nil.
	ErrNoFS = errors.New("render: file system must not be nil")

	// ErrUnknownTemplate is returned by Render for a page that was not
	// parsed.
	ErrUnknownTemplate = errors.New("render: unknown template")
)

// Config configures an Engine.
type Config struct {
	// FS holds the templates.
	FS fs.FS

	// Layout is the layout name without extension. Defaults to
	// DefaultLayout.
	Layout string

	// Ext is the template file extension. Defaults to DefaultExt.
	Ext string

	// Funcs are made available to every template.
	Funcs template.FuncMap
}

// Engine holds the parsed pages. It is safe for concurrent use.
type Engine struct {
	layout string
	pages  map[string]*template.Template
}

// New parses the layout and every other template in cfg.FS. Page names are
// slash-separated paths relative to the root without the extension, e.g.
// "users" or "admin/index".
func New(cfg Config) (*Engine, error) {
	if cfg.FS == nil {
		return nil, ErrNoFS
	}

	if cfg.Layout == "" {
		cfg.Layout = DefaultLayout
	}
	if cfg.Ext == "" {
		cfg.Ext = DefaultExt
	}

	layoutFile := cfg.Layout + cfg.Ext

	layoutSrc, err := fs.ReadFile(cfg.FS, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("render: read layout: %w", err)
	}

	base, err := template.New(path.Base(layoutFile)).Funcs(cfg.Funcs).Parse(string(layoutSrc))
	if err != nil {
		return nil, fmt.Errorf("render: parse layout: %w", err)
	}

	e := &Engine{layout: base.Name(), pages: make(map[string]*template.Template)}

	err = fs.WalkDir(cfg.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, cfg.Ext) || p == layoutFile {
			return nil
		}

		src, err := fs.ReadFile(cfg.FS, p)
		if err != nil {
			return err
		}

		page, err := base.Clone()
		if err != nil {
			return err
		}

		if _, err := page.New(p).Parse(string(src)); err != nil {
			return fmt.Errorf("render: parse %s: %w", p, err)
		}

		e.pages[strings.TrimSuffix(p, cfg.Ext)] = page

		return nil
	})
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Render executes the layout with the named page.
func (e *Engine) Render(w io.Writer, name string, data any) error {
	page, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	return page.ExecuteTemplate(w, e.layout, data)
}

// Has reports whether the named page exists.
func (e *Engine) Has(name string) bool {
	_, ok := e.pages[name]
	return ok
}
