package config

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/uprename/internal/errors"
	"github.com/vango-dev/uprename/pkg/upload"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "uprename.json"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultRoutePath is the path of the route created by New.
	DefaultRoutePath = "/upload"

	// DefaultFeedPath is the default path of the outcome feed.
	DefaultFeedPath = "/_uprename/feed"

	// DefaultMetricsPath is the default path of the metrics endpoint.
	DefaultMetricsPath = "/metrics"
)

// Storage backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config represents the complete uprename.json configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `json:"server"`

	// Routes are the paths upload bodies are accepted on.
	Routes []RouteConfig `json:"routes"`

	// MaxBodySize is the maximum request body in bytes.
	MaxBodySize int64 `json:"maxBodySize,omitempty"`

	// Layout tunes the body layout.
	Layout LayoutConfig `json:"layout"`

	// Storage selects where staged uploads live.
	Storage StorageConfig `json:"storage"`

	Metrics MetricsConfig `json:"metrics"`
	Tracing TracingConfig `json:"tracing"`
	Feed    FeedConfig    `json:"feed"`
	Log     LogConfig     `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Address is the listen address (e.g., ":8080").
	Address string `json:"address,omitempty"`

	// ReadHeaderTimeout bounds reading request headers (e.g., "5s").
	ReadHeaderTimeout string `json:"readHeaderTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "30s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`
}

// RouteConfig describes one upload route.
type RouteConfig struct {
	// Path is the URL path, starting with "/".
	Path string `json:"path"`

	// Enabled turns the route on.
	Enabled bool `json:"enabled"`

	// Upstream, when set, receives the request after processing, with its
	// body intact. Without it the route answers with a JSON summary.
	Upstream string `json:"upstream,omitempty"`
}

// LayoutConfig tunes the body layout.
type LayoutConfig struct {
	// TrailerWidth is the byte distance between records (default: 60).
	TrailerWidth int `json:"trailerWidth,omitempty"`
}

// StorageConfig selects the relocation backend.
type StorageConfig struct {
	// Backend is "fs" or "s3".
	Backend string `json:"backend,omitempty"`

	// Root is the directory staged paths are resolved against (fs only).
	Root string `json:"root,omitempty"`

	S3 S3Config `json:"s3"`
}

// S3Config contains S3 backend settings.
type S3Config struct {
	Bucket       string `json:"bucket,omitempty"`
	Region       string `json:"region,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	UsePathStyle bool   `json:"usePathStyle,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled"`
	TracerName string `json:"tracerName,omitempty"`
}

// FeedConfig contains outcome feed settings.
type FeedConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`

	// History is the number of recent batches sent to new clients.
	History int `json:"history,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           DefaultAddress,
			ReadHeaderTimeout: "5s",
			ShutdownTimeout:   "30s",
		},
		Routes: []RouteConfig{
			{Path: DefaultRoutePath, Enabled: true},
		},
		MaxBodySize: upload.DefaultConfig().MaxBodySize,
		Layout: LayoutConfig{
			TrailerWidth: upload.DefaultTrailerWidth,
		},
		Storage: StorageConfig{
			Backend: BackendFS,
			Root:    "/",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      DefaultMetricsPath,
			Namespace: "uprename",
		},
		Tracing: TracingConfig{
			TracerName: "uprename",
		},
		Feed: FeedConfig{
			Path:    DefaultFeedPath,
			History: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for uprename.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Create the file or run 'uprename serve' without --config to use defaults")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault loads uprename.json from dir, or returns defaults when the
// file does not exist.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E101").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	def := New()

	// Server
	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.ReadHeaderTimeout == "" {
		c.Server.ReadHeaderTimeout = def.Server.ReadHeaderTimeout
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	// Body
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = def.MaxBodySize
	}
	if c.Layout.TrailerWidth == 0 {
		c.Layout.TrailerWidth = def.Layout.TrailerWidth
	}

	// Storage
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFS
	}
	if c.Storage.Root == "" {
		c.Storage.Root = def.Storage.Root
	}

	// Observability
	if c.Metrics.Path == "" {
		c.Metrics.Path = def.Metrics.Path
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = def.Metrics.Namespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = def.Tracing.TracerName
	}
	if c.Feed.Path == "" {
		c.Feed.Path = def.Feed.Path
	}
	if c.Feed.History == 0 {
		c.Feed.History = def.Feed.History
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	enabled := 0
	for _, r := range c.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return errors.New("E102").
				WithDetail("Route path " + quote(r.Path) + " must start with \"/\"")
		}
		if r.Upstream != "" {
			u, err := url.Parse(r.Upstream)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return errors.New("E107").
					WithDetail("Route " + r.Path + " has upstream " + quote(r.Upstream)).
					WithExample(`{"path": "/upload", "enabled": true, "upstream": "http://127.0.0.1:9000"}`)
			}
		}
		if r.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.New("E102").
			WithSuggestion("Enable at least one entry in \"routes\"").
			WithExample(`"routes": [{"path": "/upload", "enabled": true}]`)
	}

	switch c.Storage.Backend {
	case BackendFS:
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("E103").
				WithDetail("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return errors.New("E103").
			WithDetail("Unknown storage backend " + quote(c.Storage.Backend))
	}

	if _, err := parseDuration("server.readHeaderTimeout", c.Server.ReadHeaderTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("server.shutdownTimeout", c.Server.ShutdownTimeout); err != nil {
		return err
	}

	if c.Layout.TrailerWidth <= 0 {
		return errors.New("E105")
	}

	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("E106").WithDetail("Unknown log level " + quote(c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("E106").WithDetail("Unknown log format " + quote(c.Log.Format))
	}

	return nil
}

// EnabledRoutes returns the routes that are turned on.
func (c *Config) EnabledRoutes() []RouteConfig {
	var routes []RouteConfig
	for _, r := range c.Routes {
		if r.Enabled {
			routes = append(routes, r)
		}
	}
	return routes
}

// BodyLayout returns the scanner layout for this configuration.
func (c *Config) BodyLayout() upload.Layout {
	if c.Layout.TrailerWidth <= 0 {
		return upload.DefaultLayout
	}
	return upload.DefaultLayout.WithTrailerWidth(c.Layout.TrailerWidth)
}

// ReadHeaderTimeout returns the parsed read header timeout.
func (c *Config) ReadHeaderTimeout() time.Duration {
	d, _ := parseDuration("server.readHeaderTimeout", c.Server.ReadHeaderTimeout)
	return d
}

// ShutdownTimeout returns the parsed shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := parseDuration("server.shutdownTimeout", c.Server.ShutdownTimeout)
	return d
}

// LogLevel returns the configured slog level, or info if unknown.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New("E104").
			WithDetail(field + " has invalid duration " + quote(s)).
			WithExample(`"` + field[strings.LastIndex(field, ".")+1:] + `": "5s"`)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func quote(s string) string {
	return `"` + s + `"`
}
