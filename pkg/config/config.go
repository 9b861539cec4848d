package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. SANTA_SERVER_PORT or SANTA_GENAI_API_KEY.
const EnvPrefix = "SANTA"

// Config represents the complete application configuration.
type Config struct {
	Globe     GlobeConfig     `json:"globe" mapstructure:"globe"`
	Route     RouteConfig     `json:"route" mapstructure:"route"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	Geography GeographyConfig `json:"geography" mapstructure:"geography"`
	GenAI     GenAIConfig     `json:"genai" mapstructure:"genai"`
	Chat      ChatConfig      `json:"chat" mapstructure:"chat"`
	Database  DatabaseConfig  `json:"database" mapstructure:"database"`
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// GlobeConfig contains camera and animation settings.
type GlobeConfig struct {
	// FrameIntervalMs is the animation frame period (default: 33, about 30 fps)
	FrameIntervalMs int `json:"frame_interval_ms" mapstructure:"frame_interval_ms"`

	// Ease is the fraction of the remaining rotation covered per frame
	Ease float64 `json:"ease" mapstructure:"ease"`

	// DragSensitivity is degrees of rotation per pixel at scale 1
	DragSensitivity float64 `json:"drag_sensitivity" mapstructure:"drag_sensitivity"`

	// WheelStep is the zoom factor per wheel notch or key press
	WheelStep float64 `json:"wheel_step" mapstructure:"wheel_step"`

	// RotateStep is the keyboard rotation in pixels of equivalent drag
	RotateStep float64 `json:"rotate_step" mapstructure:"rotate_step"`
}

// RouteConfig selects the route and its pace.
type RouteConfig struct {
	// Source is "file", "database" or "builtin"
	Source string `json:"source" mapstructure:"source"`

	// File is the YAML route used by the file source
	File string `json:"file" mapstructure:"file"`

	// Name selects the route in the database
	Name string `json:"name" mapstructure:"name"`

	// AdvanceSeconds is the time spent at each waypoint (default: 10)
	AdvanceSeconds int `json:"advance_seconds" mapstructure:"advance_seconds"`

	// CaptionTimeoutSeconds bounds a single status caption request
	CaptionTimeoutSeconds int `json:"caption_timeout_seconds" mapstructure:"caption_timeout_seconds"`
}

// TelemetryConfig contains the instrument simulation settings.
type TelemetryConfig struct {
	// IntervalMs is the sample period (default: 200)
	IntervalMs int `json:"interval_ms" mapstructure:"interval_ms"`

	// MinSpeedKmh and MaxSpeedKmh bound the simulated speed
	MinSpeedKmh float64 `json:"min_speed_kmh" mapstructure:"min_speed_kmh"`
	MaxSpeedKmh float64 `json:"max_speed_kmh" mapstructure:"max_speed_kmh"`

	// Seed makes the simulation repeatable when non-zero
	Seed uint64 `json:"seed" mapstructure:"seed"`
}

// GeographyConfig controls where land outlines come from.
type GeographyConfig struct {
	// URL of the GeoJSON FeatureCollection
	URL string `json:"url" mapstructure:"url"`

	// LocalPath is read instead of URL when set
	LocalPath string `json:"local_path" mapstructure:"local_path"`

	// CachePath keeps the last download (empty disables caching)
	CachePath string `json:"cache_path" mapstructure:"cache_path"`

	// CacheTTLHours is how long the cache is trusted (0 = forever)
	CacheTTLHours int `json:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`

	// TimeoutSeconds bounds the download
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// GenAIConfig contains the text generation API settings.
type GenAIConfig struct {
	// APIKey for the generative language API (should be loaded from environment)
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model name (default: gemini-2.5-flash)
	Model string `json:"model" mapstructure:"model"`

	// BaseURL overrides the API endpoint
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// Language for captions and chat replies
	Language string `json:"language" mapstructure:"language"`

	// RequestsPerMinute throttles all calls
	RequestsPerMinute int `json:"requests_per_minute" mapstructure:"requests_per_minute"`

	// TimeoutSeconds bounds a single HTTP request
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`

	// MaxRetries on quota errors (default: 3)
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// CaptionCacheSize is the number of locations whose caption is reused (0 disables)
	CaptionCacheSize int `json:"caption_cache_size" mapstructure:"caption_cache_size"`

	// CaptionCacheMinutes is how long a cached caption is reused
	CaptionCacheMinutes int `json:"caption_cache_minutes" mapstructure:"caption_cache_minutes"`
}

// ChatConfig contains chat persistence settings.
type ChatConfig struct {
	// Store is "file", "database" or "memory"
	Store string `json:"store" mapstructure:"store"`

	// HistoryFile is used by the file store
	HistoryFile string `json:"history_file" mapstructure:"history_file"`

	// Session names the conversation in the database store
	Session string `json:"session" mapstructure:"session"`

	// Temperature for chat replies
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Driver is the database driver (postgres)
	Driver string `json:"driver" mapstructure:"driver"`

	// Host is the database server hostname
	Host string `json:"host" mapstructure:"host"`

	// Port is the database server port
	Port int `json:"port" mapstructure:"port"`

	// Database is the database name
	Database string `json:"database" mapstructure:"database"`

	// Username for database authentication
	Username string `json:"username" mapstructure:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" mapstructure:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" mapstructure:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" mapstructure:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" mapstructure:"max_idle_conns"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" mapstructure:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" mapstructure:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled" mapstructure:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file" mapstructure:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file" mapstructure:"tls_key_file"`

	// AllowedOrigins for CORS
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`

	// StaticDir holds the browser client
	StaticDir string `json:"static_dir" mapstructure:"static_dir"`

	// CanvasWidth and CanvasHeight size the server-side globe
	CanvasWidth  int `json:"canvas_width" mapstructure:"canvas_width"`
	CanvasHeight int `json:"canvas_height" mapstructure:"canvas_height"`

	// PushIntervalMs is the websocket snapshot period
	PushIntervalMs int `json:"push_interval_ms" mapstructure:"push_interval_ms"`

	// JWTSecret signs operator tokens (set via SANTA_SERVER_JWT_SECRET)
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret"`

	// OperatorPasswordHash is the bcrypt hash of the operator password;
	// empty disables the operator endpoints
	OperatorPasswordHash string `json:"operator_password_hash" mapstructure:"operator_password_hash"`

	// TokenHours is how long an operator token stays valid
	TokenHours int `json:"token_hours" mapstructure:"token_hours"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" mapstructure:"level"`

	// File receives the log; rotated by size
	File string `json:"file" mapstructure:"file"`

	// MaxSizeMB before rotation
	MaxSizeMB int `json:"max_size_mb" mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated files kept
	MaxBackups int `json:"max_backups" mapstructure:"max_backups"`

	// MaxAgeDays before rotated files are removed
	MaxAgeDays int `json:"max_age_days" mapstructure:"max_age_days"`

	// Console also writes human-readable output to stderr
	Console bool `json:"console" mapstructure:"console"`
}

// Load reads configuration from a JSON file, filling every unset key from
// DefaultConfig and applying SANTA_* environment overrides.
// If the file doesn't exist, the defaults (plus overrides) are returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The API key is also accepted under its usual names
	if err := v.BindEnv("genai.api_key", EnvPrefix+"_GENAI_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every leaf of def so that partial files and
// environment variables resolve against it.
func setDefaults(v *viper.Viper, def *Config) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}

	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Globe: GlobeConfig{
			FrameIntervalMs: 33,
			Ease:            0.05,
			DragSensitivity: 75,
			WheelStep:       1.15,
			RotateStep:      20,
		},
		Route: RouteConfig{
			Source:                "file",
			File:                  "configs/route.yaml",
			Name:                  "christmas-eve",
			AdvanceSeconds:        10,
			CaptionTimeoutSeconds: 30,
		},
		Telemetry: TelemetryConfig{
			IntervalMs:  200,
			MinSpeedKmh: 2000,
			MaxSpeedKmh: 6000,
		},
		Geography: GeographyConfig{
			URL:            "https://raw.githubusercontent.com/holtzy/D3-graph-gallery/master/DATA/world.geojson",
			CachePath:      "data/world.geojson",
			CacheTTLHours:  24 * 7,
			TimeoutSeconds: 20,
		},
		GenAI: GenAIConfig{
			Model:               "gemini-2.5-flash",
			Language:            "English",
			RequestsPerMinute:   15,
			TimeoutSeconds:      30,
			MaxRetries:          3,
			CaptionCacheSize:    64,
			CaptionCacheMinutes: 30,
		},
		Chat: ChatConfig{
			Store:       "file",
			HistoryFile: "data/chat_history.json",
			Session:     "default",
			Temperature: 0.7,
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			Database:     "santascope",
			Username:     "santascope",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
			StaticDir:      "web",
			CanvasWidth:    800,
			CanvasHeight:   600,
			PushIntervalMs: 100,
			TokenHours:     12,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "logs/santa-scope.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Globe.FrameIntervalMs > 0, "globe.frame_interval_ms must be positive, got %d", c.Globe.FrameIntervalMs)
	check(c.Globe.Ease > 0 && c.Globe.Ease <= 1, "globe.ease must be in (0, 1], got %g", c.Globe.Ease)
	check(c.Globe.DragSensitivity > 0, "globe.drag_sensitivity must be positive, got %g", c.Globe.DragSensitivity)
	check(c.Globe.WheelStep > 1, "globe.wheel_step must be greater than 1, got %g", c.Globe.WheelStep)

	switch c.Route.Source {
	case "file":
		check(c.Route.File != "", "route.file is required for the file source")
	case "database":
		check(c.Route.Name != "", "route.name is required for the database source")
	case "builtin":
	default:
		errs = append(errs, fmt.Errorf("route.source must be file, database or builtin, got %q", c.Route.Source))
	}
	check(c.Route.AdvanceSeconds > 0, "route.advance_seconds must be positive, got %d", c.Route.AdvanceSeconds)

	check(c.Telemetry.IntervalMs > 0, "telemetry.interval_ms must be positive, got %d", c.Telemetry.IntervalMs)
	check(c.Telemetry.MinSpeedKmh < c.Telemetry.MaxSpeedKmh, "telemetry speed range is empty (%g..%g)",
		c.Telemetry.MinSpeedKmh, c.Telemetry.MaxSpeedKmh)

	check(c.GenAI.MaxRetries >= 0, "genai.max_retries must not be negative, got %d", c.GenAI.MaxRetries)

	switch c.Chat.Store {
	case "file":
		check(c.Chat.HistoryFile != "", "chat.history_file is required for the file store")
	case "database", "memory":
	default:
		errs = append(errs, fmt.Errorf("chat.store must be file, database or memory, got %q", c.Chat.Store))
	}

	check(c.Server.CanvasWidth > 0 && c.Server.CanvasHeight > 0, "server canvas must have a positive size")
	check(c.Server.OperatorPasswordHash == "" || c.Server.JWTSecret != "",
		"server.jwt_secret is required when an operator password is set")

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// UsesDatabase reports whether any component needs PostgreSQL.
func (c *Config) UsesDatabase() bool {
	return c.Route.Source == "database" || c.Chat.Store == "database"
}

// FrameInterval returns the animation frame period.
func (g GlobeConfig) FrameInterval() time.Duration {
	return time.Duration(g.FrameIntervalMs) * time.Millisecond
}

// AdvancePeriod returns the time spent at each waypoint.
func (r RouteConfig) AdvancePeriod() time.Duration {
	return time.Duration(r.AdvanceSeconds) * time.Second
}

// CaptionTimeout returns the per-caption request bound.
func (r RouteConfig) CaptionTimeout() time.Duration {
	return time.Duration(r.CaptionTimeoutSeconds) * time.Second
}

// Interval returns the telemetry sample period.
func (t TelemetryConfig) Interval() time.Duration {
	return time.Duration(t.IntervalMs) * time.Millisecond
}

// CacheTTL returns how long the geography cache is trusted.
func (g GeographyConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLHours) * time.Hour
}

// Timeout returns the geography download bound.
func (g GeographyConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Timeout returns the API request bound.
func (g GenAIConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// CaptionCacheTTL returns how long a caption is reused.
func (g GenAIConfig) CaptionCacheTTL() time.Duration {
	return time.Duration(g.CaptionCacheMinutes) * time.Minute
}

// PushInterval returns the websocket snapshot period.
func (s ServerConfig) PushInterval() time.Duration {
	return time.Duration(s.PushIntervalMs) * time.Millisecond
}

// TokenDuration returns the operator token lifetime.
func (s ServerConfig) TokenDuration() time.Duration {
	return time.Duration(s.TokenHours) * time.Hour
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}
