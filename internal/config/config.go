// Package config loads the waypoint server configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Middleware stacks.
const (
	StackBasic    = "basic"
	StackHardened = "hardened"
)

var (
	// ErrUnknownStack is returned for a stack other than basic or hardened.
	ErrUnknownStack = errors.New("config: unknown stack")

	// ErrEmptyListen is returned when no listen address is set.
	ErrEmptyListen = errors.New("config: listen address must not be empty")

	// ErrEmptyApp is returned when no demo app is selected.
	ErrEmptyApp = errors.New("config: app must not be empty")

	// ErrNegativeLimit is returned for a negative connection, body or upload limit.
	ErrNegativeLimit = errors.New("config: limits must not be negative")

	// ErrInvalidRate is returned when the hardened stack has no positive rate.
	ErrInvalidRate = errors.New("config: hardened rate must be greater than zero")

	// ErrInvalidMetrics is returned for a relative metrics path.
	ErrInvalidMetrics = errors.New("config: metrics path must start with /")

	// ErrInvalidLogLevel is returned for a level zap does not know.
	ErrInvalidLogLevel = errors.New("config: invalid log level")
)

// Config is the server configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	Listen         string         `yaml:"listen"`
	App            string         `yaml:"app"`
	Stack          string         `yaml:"stack"`
	MaxConnections int            `yaml:"max_connections"`
	BodyLimit      int64          `yaml:"body_limit"`
	Log            LogConfig      `yaml:"log"`
	Upload         UploadConfig   `yaml:"upload"`
	Metrics        MetricsConfig  `yaml:"metrics"`
	Hardened       HardenedConfig `yaml:"hardened"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// UploadConfig sets the upload directory and limits.
type UploadConfig struct {
	Dir         string `yaml:"dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
	MaxFiles    int    `yaml:"max_files"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HardenedConfig tunes the hardened stack.
type HardenedConfig struct {
	// Rate requests are allowed per Per for each client IP.
	Rate  int           `yaml:"rate"`
	Per   time.Duration `yaml:"per"`
	Burst int           `yaml:"burst"`

	CORSOrigins []string `yaml:"cors_origins"`

	// BasicAuth maps user names to bcrypt hashes. When set, the metrics
	// endpoint requires them.
	BasicAuth map[string]string `yaml:"basic_auth"`

	HSTSMaxAge int `yaml:"hsts_max_age"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:    ":3000",
		App:       "basics",
		Stack:     StackBasic,
		BodyLimit: 100 << 10,
		Log: LogConfig{
			Level: "info",
		},
		Upload: UploadConfig{
			Dir:         "uploads",
			MaxFileSize: 5 << 20,
			MaxFiles:    5,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Hardened: HardenedConfig{
			Rate:       100,
			Per:        time.Second,
			Burst:      20,
			HSTSMaxAge: 31536000,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decode overlays data on cfg. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, ErrEmptyListen)
	}

	if strings.TrimSpace(c.App) == "" {
		errs = append(errs, ErrEmptyApp)
	}

	switch c.Stack {
	case StackBasic, StackHardened:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStack, c.Stack))
	}

	if _, err := c.Log.ZapLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.MaxConnections < 0 || c.BodyLimit < 0 || c.Upload.MaxFileSize < 0 || c.Upload.MaxFiles < 0 {
		errs = append(errs, ErrNegativeLimit)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMetrics, c.Metrics.Path))
	}

	if c.Stack == StackHardened && (c.Hardened.Rate <= 0 || c.Hardened.Per <= 0) {
		errs = append(errs, ErrInvalidRate)
	}

	if c.Hardened.Burst < 0 || c.Hardened.HSTSMaxAge < 0 {
		errs = append(errs, ErrNegativeLimit)
	}

	return errors.Join(errs...)
}

// ZapLevel parses the configured log level.
func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return level, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}
