// Package app wires the demo applications served by cmd/waypoint. Each app
// registers its routes on a router that already carries the configured
// middleware stack.
package app

import (
	"errors"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitalvas/waypoint/internal/config"
	"github.com/vitalvas/waypoint/mux"
	"github.com/vitalvas/waypoint/muxhandlers"
	"go.uber.org/zap"
)

// ErrUnknownApp is returned by New for an app name without a builder.
var ErrUnknownApp = errors.New("app: unknown app")

// Deps carries what the apps need from the binary.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger

	// Registry collects request metrics when metrics are enabled. A fresh
	// registry with the Go and process collectors is used when nil.
	Registry *prometheus.Registry
}

// Builder registers an app's routes and app-specific stages.
type Builder func(d *Deps, r *mux.Router) error

func builders() map[string]Builder {
	return map[string]Builder{
		"basics":     buildBasics,
		"methods":    buildMethods,
		"routing":    buildRouting,
		"middleware": buildMiddleware,
		"uploads":    buildUploads,
		"views":      buildViews,
	}
}

// Names returns the available app names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders()))
	for name := range builders() {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// New builds the router for d.Config.App with the configured stack.
func New(d Deps) (*mux.Router, error) {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	build, ok := builders()[d.Config.App]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownApp, d.Config.App)
	}

	if d.Config.Metrics.Enabled && d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
		d.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := mux.NewRouter()
	r.Logger = d.Logger.With(zap.String("app", d.Config.App))

	stack := basicStack
	if d.Config.Stack == config.StackHardened {
		stack = hardenedStack
	}

	if err := stack(&d, r); err != nil {
		return nil, fmt.Errorf("app: %s stack: %w", d.Config.Stack, err)
	}

	if err := registerMetrics(&d, r); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	if err := build(&d, r); err != nil {
		return nil, fmt.Errorf("app: %s: %w", d.Config.App, err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// registerMetrics exposes the registry. In the hardened stack the endpoint
// requires basic auth when credentials are configured.
func registerMetrics(d *Deps, r *mux.Router) error {
	if !d.Config.Metrics.Enabled {
		return nil
	}

	handler := promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry})
	route := r.Get(d.Config.Metrics.Path, mux.WrapHandler(handler)).Name("metrics")

	if d.Config.Stack == config.StackHardened && len(d.Config.Hardened.BasicAuth) > 0 {
		auth, err := muxhandlers.BasicAuthStage(muxhandlers.BasicAuthConfig{
			Realm:             "metrics",
			HashedCredentials: d.Config.Hardened.BasicAuth,
		})
		if err != nil {
			return err
		}
		route.Use(auth)
	}

	return nil
}
