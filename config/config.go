package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the ops HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// MQTTConfig holds the broker connection and topic layout.
type MQTTConfig struct {
	BrokerURL             string `yaml:"broker_url"`
	ClientID              string `yaml:"client_id"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	KeepAliveSeconds      int    `yaml:"keepalive_seconds"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
	QoS                   byte   `yaml:"qos"`
	CACert                string `yaml:"ca_cert"`
	TopicPrefix           string `yaml:"topic_prefix"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// EngineConfig tunes the tag-event processing pipeline.
type EngineConfig struct {
	Lanes               int    `yaml:"lanes"`
	QueueSize           int    `yaml:"queue_size"`
	SessionOpenPolicy   string `yaml:"session_open_policy"`
	StoreTimeoutSeconds int    `yaml:"store_timeout_seconds"`
}

// LoggingConfig selects the zap logger flavour.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PolicyCardOrLockout = "card_or_lockout"
	PolicyLockoutOnly   = "lockout_only"

	DefaultTopicPrefix = "APP/LOTO_RFID"
)

// Load reads the configuration from the given path. ${VAR} references in the
// file are expanded from the environment before decoding.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a YAML document and applies defaults.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds < 0 {
		cfg.Server.CacheTTLSeconds = 0
	}

	if cfg.MQTT.BrokerURL == "" {
		cfg.MQTT.BrokerURL = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "loto-rfid-backend"
	}
	if cfg.MQTT.KeepAliveSeconds <= 0 {
		cfg.MQTT.KeepAliveSeconds = 30
	}
	if cfg.MQTT.ConnectTimeoutSeconds <= 0 {
		cfg.MQTT.ConnectTimeoutSeconds = 10
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	cfg.MQTT.TopicPrefix = strings.Trim(cfg.MQTT.TopicPrefix, "/")
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = DriverPostgres
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 2
	}

	if cfg.Engine.Lanes <= 0 {
		cfg.Engine.Lanes = 8
	}
	if cfg.Engine.QueueSize <= 0 {
		cfg.Engine.QueueSize = 64
	}
	switch cfg.Engine.SessionOpenPolicy {
	case "":
		cfg.Engine.SessionOpenPolicy = PolicyCardOrLockout
	case PolicyCardOrLockout, PolicyLockoutOnly:
	default:
		return fmt.Errorf("engine.session_open_policy must be %q or %q, got %q",
			PolicyCardOrLockout, PolicyLockoutOnly, cfg.Engine.SessionOpenPolicy)
	}
	if cfg.Engine.StoreTimeoutSeconds <= 0 {
		cfg.Engine.StoreTimeoutSeconds = 5
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}
