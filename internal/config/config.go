// ABOUTME: Configuration loading and parsing for courier
// ABOUTME: Supports a single YAML file with environment variable expansion and defaults

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete courier configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Validation ValidationConfig `yaml:"validation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Subscriber SubscriberConfig `yaml:"subscriber"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds listener addressing and broker-wide limits.
type ServerConfig struct {
	Host                        string `yaml:"host"`
	Port                        int    `yaml:"port"`
	HeartbeatIntervalSeconds    int    `yaml:"heartbeat_interval_seconds"`
	MaxClientsPerChannel        int    `yaml:"max_clients_per_channel"`
	MaxTotalClients             int    `yaml:"max_total_clients"`
	OutboundQueueCapacity       int    `yaml:"outbound_queue_capacity"`
	ShutdownDeadlineSeconds     int    `yaml:"shutdown_deadline_seconds"`
	ChannelPruneIntervalSeconds int    `yaml:"channel_prune_interval_seconds"`
	ChannelPruneGraceSeconds    int    `yaml:"channel_prune_grace_seconds"`
	RateLimitBucketTTLSeconds   int    `yaml:"rate_limit_bucket_ttl_seconds"`
}

// ChannelPruneInterval returns how often the janitor sweeps the registry for
// empty ephemeral channels.
func (c *ServerConfig) ChannelPruneInterval() time.Duration {
	return time.Duration(c.ChannelPruneIntervalSeconds) * time.Second
}

// ChannelPruneGrace returns how long an ephemeral channel must sit empty
// before the janitor removes it.
func (c *ServerConfig) ChannelPruneGrace() time.Duration {
	return time.Duration(c.ChannelPruneGraceSeconds) * time.Second
}

// RateLimitBucketTTL returns how long a rate limit bucket may sit idle
// before the janitor evicts it.
func (c *ServerConfig) RateLimitBucketTTL() time.Duration {
	return time.Duration(c.RateLimitBucketTTLSeconds) * time.Second
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	Secret        string `yaml:"secret"`
	Algorithm     string `yaml:"algorithm"`
	Required      bool   `yaml:"required"`
	LeewaySeconds int    `yaml:"leeway_seconds"`
}

// ValidationConfig holds event/frame structural validation limits.
type ValidationConfig struct {
	MaxEventBytes      int      `yaml:"max_event_bytes"`
	MaxStringLength    int      `yaml:"max_string_length"`
	MaxArrayLength     int      `yaml:"max_array_length"`
	MaxNestingDepth    int      `yaml:"max_nesting_depth"`
	AllowedEventTypes  []string `yaml:"allowed_event_types"`
	RequireSourceMatch bool     `yaml:"require_source_match"`
}

// RateLimitConfig holds the default bucket and per-type overrides.
type RateLimitConfig struct {
	Default RateLimitBucket            `yaml:"default"`
	PerType map[string]RateLimitBucket `yaml:"per_type"`
}

// RateLimitBucket describes a token bucket's refill rate and burst size.
type RateLimitBucket struct {
	TokensPerSecond float64 `yaml:"tokens_per_second"`
	BurstSize       int     `yaml:"burst_size"`
}

// ChannelsConfig holds channels that should exist at startup.
type ChannelsConfig struct {
	Preconfigured []string `yaml:"preconfigured"`
}

// SubscriberConfig holds subscriber-stream behavior toggles.
type SubscriberConfig struct {
	AllowLegacyPing bool `yaml:"allow_legacy_ping"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// defaults applies the default values named in the external interface spec.
func (c *Config) defaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.HeartbeatIntervalSeconds == 0 {
		c.Server.HeartbeatIntervalSeconds = 30
	}
	if c.Server.MaxClientsPerChannel == 0 {
		c.Server.MaxClientsPerChannel = 100
	}
	if c.Server.OutboundQueueCapacity == 0 {
		c.Server.OutboundQueueCapacity = 64
	}
	if c.Server.ShutdownDeadlineSeconds == 0 {
		c.Server.ShutdownDeadlineSeconds = 30
	}
	if c.Server.ChannelPruneIntervalSeconds == 0 {
		c.Server.ChannelPruneIntervalSeconds = 60
	}
	if c.Server.ChannelPruneGraceSeconds == 0 {
		c.Server.ChannelPruneGraceSeconds = 300
	}
	if c.Server.RateLimitBucketTTLSeconds == 0 {
		c.Server.RateLimitBucketTTLSeconds = 600
	}
	if c.Auth.Algorithm == "" {
		c.Auth.Algorithm = "HS256"
	}
	if c.Validation.MaxEventBytes == 0 {
		c.Validation.MaxEventBytes = 1048576
	}
	if c.Validation.MaxStringLength == 0 {
		c.Validation.MaxStringLength = 10000
	}
	if c.Validation.MaxArrayLength == 0 {
		c.Validation.MaxArrayLength = 1000
	}
	if c.Validation.MaxNestingDepth == 0 {
		c.Validation.MaxNestingDepth = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// validate checks invariants Load() cannot fix with a default.
func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.Required && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth.required is true")
	}
	return nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable value.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
