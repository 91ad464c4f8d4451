package muxhandlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitalvas/waypoint/mux"
)

// MetricsConfig configures the Prometheus metrics stage.
type MetricsConfig struct {
	// Registerer receives the collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Namespace prefixes the metric names. Defaults to "waypoint".
	Namespace string

	// Buckets overrides the latency histogram buckets.
	Buckets []float64
}

// MetricsStage returns a stage that counts requests and observes their
// latency by method, route pattern and status. Collectors already
// registered with the same descriptors are reused.
func MetricsStage(cfg MetricsConfig) (mux.StageFunc, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "waypoint"
	}

	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   buckets,
	}, []string{"method", "route"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}

	return func(c *mux.Context) mux.Result {
		start := time.Now()

		c.OnFinish(func(c *mux.Context) {
			route := routeLabel(c)
			requests.WithLabelValues(c.Method(), route, strconv.Itoa(c.Writer.Status())).Inc()
			duration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		})

		return mux.Next()
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}

		return c, err
	}

	return c, nil
}
