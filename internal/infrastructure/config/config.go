package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the simple MQTT client.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Demo     DemoConfig     `yaml:"demo"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker  MQTTBrokerConfig  `yaml:"broker"`
	Auth    MQTTAuthConfig    `yaml:"auth"`
	Topic   string            `yaml:"topic"`
	QoS     int               `yaml:"qos"`
	Session MQTTSessionConfig `yaml:"session"`
	Retry   MQTTRetryConfig   `yaml:"retry"`
	Publish MQTTPublishConfig `yaml:"publish"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	// URL is the broker address in scheme://host:port form (tcp, ssl, ws, wss).
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTSessionConfig contains per-connection session settings.
type MQTTSessionConfig struct {
	KeepAlive      int  `yaml:"keep_alive"` // seconds
	CleanSession   bool `yaml:"clean_session"`
	ConnectTimeout int  `yaml:"connect_timeout"` // seconds
}

// MQTTRetryConfig controls the connect retry ceiling and reconnect debounce.
type MQTTRetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	PauseMillis int `yaml:"pause_ms"`
}

// MQTTPublishConfig contains publish and shutdown timing.
type MQTTPublishConfig struct {
	TimeoutSeconds    int `yaml:"timeout"`
	DisconnectQuiesce int `yaml:"disconnect_quiesce_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// InfluxDBConfig contains InfluxDB connection settings for connection telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DemoConfig contains settings used only by the demo entry point.
type DemoConfig struct {
	Message      string `yaml:"message"`
	PublishDelay int    `yaml:"publish_delay"` // seconds
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SIMPLEMQTT_SECTION_KEY
// For example: SIMPLEMQTT_MQTT_BROKER, SIMPLEMQTT_LOG_LEVEL
//
// An empty path skips the file and uses defaults plus environment.
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = GenerateClientID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// GenerateClientID returns a random client identifier.
// Brokers drop the older session when two clients share an id, so ids are never derived from the host.
func GenerateClientID() string {
	return "simplemqtt-" + uuid.NewString()
}

// defaultConfig returns a Config with the default connection policy.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				URL: "tcp://localhost:1883",
			},
			Topic: "test/hello",
			QoS:   1,
			Session: MQTTSessionConfig{
				KeepAlive:      20,
				CleanSession:   true,
				ConnectTimeout: 10,
			},
			Retry: MQTTRetryConfig{
				MaxAttempts: 5,
				PauseMillis: 2500,
			},
			Publish: MQTTPublishConfig{
				TimeoutSeconds:    10,
				DisconnectQuiesce: 250,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Demo: DemoConfig{
			Message:      "Hello @ ALL",
			PublishDelay: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("SIMPLEMQTT_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker.URL = v
	}
	if v := os.Getenv("SIMPLEMQTT_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("SIMPLEMQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SIMPLEMQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SIMPLEMQTT_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}

	// Logging
	if v := os.Getenv("SIMPLEMQTT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// InfluxDB
	if v := os.Getenv("SIMPLEMQTT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if err := validateBrokerURL(c.MQTT.Broker.URL); err != nil {
		errs = append(errs, err.Error())
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Session.KeepAlive <= 0 {
		errs = append(errs, "mqtt.session.keep_alive must be positive")
	}
	if c.MQTT.Retry.MaxAttempts < 0 {
		errs = append(errs, "mqtt.retry.max_attempts cannot be negative")
	}
	if c.MQTT.Retry.PauseMillis <= 0 {
		errs = append(errs, "mqtt.retry.pause_ms must be positive")
	}
	if c.MQTT.Publish.TimeoutSeconds <= 0 {
		errs = append(errs, "mqtt.publish.timeout must be positive")
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn, or error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBrokerURL checks the broker address has the scheme://host:port shape.
func validateBrokerURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("mqtt.broker.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("mqtt.broker.url is invalid: %v", err)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("mqtt.broker.url scheme %q is not supported", u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return fmt.Errorf("mqtt.broker.url must be scheme://host:port")
	}
	return nil
}

// KeepAlive returns the keep-alive interval as a Duration.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.MQTT.Session.KeepAlive) * time.Second
}

// ConnectTimeout returns the connect timeout as a Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.Session.ConnectTimeout) * time.Second
}

// ReconnectPause returns the reconnect debounce as a Duration.
func (c *Config) ReconnectPause() time.Duration {
	return time.Duration(c.MQTT.Retry.PauseMillis) * time.Millisecond
}

// PublishTimeout returns the publish confirmation timeout as a Duration.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.MQTT.Publish.TimeoutSeconds) * time.Second
}

// DisconnectQuiesce returns the disconnect grace period as a Duration.
func (c *Config) DisconnectQuiesce() time.Duration {
	return time.Duration(c.MQTT.Publish.DisconnectQuiesce) * time.Millisecond
}

// PublishDelay returns the demo publish delay as a Duration.
func (c *Config) PublishDelay() time.Duration {
	return time.Duration(c.Demo.PublishDelay) * time.Second
}
