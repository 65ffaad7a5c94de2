// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relaychat service.
package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
// A connection may send Burst frames per RefillInterval.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// RelayConfig holds the limits and policies of the chat relay.
type RelayConfig struct {
	MaxNameLength          int  `yaml:"max_name_length"`
	MaxTextLength          int  `yaml:"max_text_length"`
	MaxLogSize             int  `yaml:"max_log_size"`
	RequireUniqueNames     bool `yaml:"require_unique_names"`
	NotifyUnknownRecipient bool `yaml:"notify_unknown_recipient"`
}

// LogConfig selects the log level (debug, info, warn, error) and format
// (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `yaml:"port"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	MaxMessageSize  int64           `yaml:"max_message_size"`
	SendBufferSize  int             `yaml:"send_buffer_size"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Relay           RelayConfig     `yaml:"relay"`
	Log             LogConfig       `yaml:"log"`
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:8080",
		},
		MaxMessageSize:  16384,
		SendBufferSize:  256,
		ShutdownTimeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		Relay: RelayConfig{
			MaxNameLength:          chat.DefaultMaxNameLength,
			MaxTextLength:          chat.DefaultMaxTextLength,
			NotifyUnknownRecipient: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}

	if cfg.Relay.MaxNameLength <= 0 {
		cfg.Relay.MaxNameLength = defaults.Relay.MaxNameLength
	}

	if cfg.Relay.MaxTextLength <= 0 {
		cfg.Relay.MaxTextLength = defaults.Relay.MaxTextLength
	}

	if cfg.Relay.MaxLogSize < 0 {
		cfg.Relay.MaxLogSize = 0
	}

	if floor := minMessageSize(cfg.Relay); cfg.MaxMessageSize < floor {
		cfg.MaxMessageSize = floor
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format != "json" {
		cfg.Log.Format = defaults.Log.Format
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// minMessageSize is the smallest read limit that still admits a sendPrivate
// frame whose text and recipient are at their bounds with every rune
// written as a \uXXXX surrogate pair.
func minMessageSize(relay RelayConfig) int64 {
	const (
		bytesPerRune     = 12
		envelopeOverhead = 256
	)
	return int64(bytesPerRune*(relay.MaxTextLength+relay.MaxNameLength) + envelopeOverhead)
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()
	applyEnv(&cfg)
	cfg = sanitizeConfig(cfg)
	return &cfg
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path (skipped when path is empty), then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

// relayOptions translates the relay section into chat.Options.
func (c Config) relayOptions() chat.Options {
	return chat.Options{
		MaxNameLength:          c.Relay.MaxNameLength,
		MaxTextLength:          c.Relay.MaxTextLength,
		MaxLogSize:             c.Relay.MaxLogSize,
		RequireUniqueNames:     c.Relay.RequireUniqueNames,
		NotifyUnknownRecipient: c.Relay.NotifyUnknownRecipient,
	}
}

func applyEnv(cfg *Config) {
	// Load SERVER_PORT
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	// Load ALLOWED_ORIGINS
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	// Load MAX_MESSAGE_SIZE
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if size := os.Getenv("SEND_BUFFER_SIZE"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}

	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	// Load RATE_LIMIT_BURST
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	// Load RATE_LIMIT_REFILL_INTERVAL
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	if n := os.Getenv("MAX_NAME_LENGTH"); n != "" {
		cfg.Relay.MaxNameLength = parseIntValue(n, cfg.Relay.MaxNameLength)
	}

	if n := os.Getenv("MAX_TEXT_LENGTH"); n != "" {
		cfg.Relay.MaxTextLength = parseIntValue(n, cfg.Relay.MaxTextLength)
	}

	if n := os.Getenv("MAX_LOG_SIZE"); n != "" {
		cfg.Relay.MaxLogSize = parseNonNegativeInt(n, cfg.Relay.MaxLogSize)
	}

	if v := os.Getenv("REQUIRE_UNIQUE_NAMES"); v != "" {
		cfg.Relay.RequireUniqueNames = parseBoolValue(v, cfg.Relay.RequireUniqueNames)
	}

	if v := os.Getenv("NOTIFY_UNKNOWN_RECIPIENT"); v != "" {
		cfg.Relay.NotifyUnknownRecipient = parseBoolValue(v, cfg.Relay.NotifyUnknownRecipient)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseNonNegativeInt is parseIntValue for settings where 0 means unlimited.
func parseNonNegativeInt(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

func parseBoolValue(value string, defaultValue bool) bool {
	if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return defaultValue
}

// parseSeconds accepts a whole number of seconds or a Go duration string.
func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

// errConfigRequired is returned when a component is built without a Config.
var errConfigRequired = errors.New("server: config is required")
