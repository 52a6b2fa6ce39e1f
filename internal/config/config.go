package config

import (
	"errors"
	"fmt"
	"time"
)

// DevJWTSecret is the placeholder secret written into fresh configs.
const DevJWTSecret = "change-me-in-production"

// LiveKitConfig configures the optional media relay used once a call connects.
type LiveKitConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	URL       string        `mapstructure:"url" yaml:"url"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	APISecret string        `mapstructure:"api_secret" yaml:"api_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`

	MaxMessageBytes int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	SendQueueSize   int      `mapstructure:"send_queue_size" yaml:"send_queue_size"`
	EventsPerMinute int      `mapstructure:"events_per_minute" yaml:"events_per_minute"`
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MetricsEnabled  bool     `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`

	LiveKit LiveKitConfig `mapstructure:"livekit" yaml:"livekit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "wirechat.db",
		JWTSecret:         DevJWTSecret,
		JWTIssuer:         "wirechat",
		JWTAudience:       "wirechat-clients",
		JWTTTL:            24 * time.Hour,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   1 << 20,
		SendQueueSize:     64,
		EventsPerMinute:   600,
		MetricsEnabled:    true,
		LiveKit: LiveKitConfig{
			TokenTTL: time.Hour,
		},
	}
}

// Validate reports configuration values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret must not be empty"))
	}
	if c.SendQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("send_queue_size must be positive, got %d", c.SendQueueSize))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_message_bytes must be positive, got %d", c.MaxMessageBytes))
	}
	if c.EventsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("events_per_minute must not be negative, got %d", c.EventsPerMinute))
	}
	if c.LiveKit.Enabled && (c.LiveKit.URL == "" || c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "") {
		errs = append(errs, errors.New("livekit.url, livekit.api_key and livekit.api_secret are required when livekit is enabled"))
	}
	return errors.Join(errs...)
}
