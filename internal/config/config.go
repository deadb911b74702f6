package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	WLED            WLEDConfig        `yaml:"wled"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Script          ScriptConfig      `yaml:"script"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// WLEDConfig contains controller connection and synchronization settings
type WLEDConfig struct {
	Address        string   `yaml:"address"`         // Controller host[:port], e.g. "192.168.1.50"
	TargetSegment  int      `yaml:"target_segment"`  // Segment this driver tracks
	TransitionTime Duration `yaml:"transition_time"` // Default crossfade applied to writes
	Timeout        Duration `yaml:"timeout"`         // Per-request HTTP timeout
	PollInterval   Duration `yaml:"poll_interval"`   // State poll interval (0 = disabled)
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`  // Outbound request rate limit

	Retry      RetryConfig  `yaml:"retry"`
	Monitoring HealthConfig `yaml:"monitoring"`
}

// RetryConfig controls command retry behavior
type RetryConfig struct {
	Enabled     *bool    `yaml:"enabled"`
	MaxAttempts int      `yaml:"max_attempts"` // Retry budget per command (default: 3)
	Delay       Duration `yaml:"delay"`        // Fixed delay between attempts (default: 2s)
}

// IsEnabled returns whether retries are on (default: true)
func (c *RetryConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HealthConfig controls the connection health monitor
type HealthConfig struct {
	Enabled       *bool    `yaml:"enabled"`
	CheckInterval Duration `yaml:"check_interval"` // Liveness check period (default: 30s)
}

// IsEnabled returns whether health monitoring is on (default: true)
func (c *HealthConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetHost returns the host with default
func (c *HealthcheckConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// GetPort returns the port with default
func (c *HealthcheckConfig) GetPort() int {
	if c.Port == 0 {
		return 9090
	}
	return c.Port
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// ScriptConfig contains automation script settings
type ScriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// GetShutdownTimeout returns the shutdown timeout as time.Duration
func (c *Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout.Duration()
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if cfg.WLED.Address == "" {
		return nil, fmt.Errorf("wled.address is required")
	}

	// WLED defaults
	if cfg.WLED.Timeout == 0 {
		cfg.WLED.Timeout = Duration(5 * time.Second)
	}
	if cfg.WLED.TransitionTime == 0 {
		cfg.WLED.TransitionTime = Duration(1 * time.Second)
	}
	if cfg.WLED.RateLimitRPS == 0 {
		cfg.WLED.RateLimitRPS = 10.0
	}
	if cfg.WLED.Retry.MaxAttempts == 0 {
		cfg.WLED.Retry.MaxAttempts = 3
	}
	if cfg.WLED.Retry.Delay == 0 {
		cfg.WLED.Retry.Delay = Duration(2 * time.Second)
	}
	if cfg.WLED.Monitoring.CheckInterval == 0 {
		cfg.WLED.Monitoring.CheckInterval = Duration(30 * time.Second)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./wledd.sqlite"
	}
	if cfg.Script.Path == "" {
		cfg.Script.Path = "main.lua"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
