// services/realtime-monitor/internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/YaganovValera/crypto-realtime/common/configloader"
	httpserver "github.com/YaganovValera/crypto-realtime/common/httpserver"
	producer "github.com/YaganovValera/crypto-realtime/common/kafka/producer"
	"github.com/YaganovValera/crypto-realtime/common/logger"
	commonredis "github.com/YaganovValera/crypto-realtime/common/redis"
	"github.com/YaganovValera/crypto-realtime/common/telemetry"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/wstransport"
)

// EnvPrefix для переменных окружения: REALTIME_WS_URL, REALTIME_KAFKA_ENABLED …
const EnvPrefix = "REALTIME"

// Config хранит все настройки сервиса realtime-monitor.
type Config struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`

	Logging   logger.Config      `mapstructure:"logging"`
	Telemetry telemetry.Config   `mapstructure:"telemetry"`
	HTTP      HTTPConfig         `mapstructure:"http"`
	Realtime  RealtimeConfig     `mapstructure:"realtime"`
	WS        wstransport.Config `mapstructure:"ws"`
	Kafka     KafkaConfig        `mapstructure:"kafka"`
	Redis     RedisConfig        `mapstructure:"redis"`
	Forwarder ForwarderConfig    `mapstructure:"forwarder"`
}

type HTTPConfig struct {
	httpserver.Config `mapstructure:",squash"`
	CORSOrigins       []string `mapstructure:"cors_origins"`
}

// RealtimeConfig: клиент плюс каналы, на которые сервис подписывается при старте.
type RealtimeConfig struct {
	realtime.Config     `mapstructure:",squash"`
	Channels            []string      `mapstructure:"channels"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

type KafkaConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Topic           string `mapstructure:"topic"`
	producer.Config `mapstructure:",squash"`
}

type RedisConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	commonredis.Config `mapstructure:",squash"`
}

type ForwarderConfig struct {
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func newLoader() *configloader.Loader {
	return configloader.New(EnvPrefix).Defaults(map[string]any{
		"service_name":    "realtime-monitor",
		"service_version": "v1.0.0",

		"logging.level":    "info",
		"logging.dev_mode": false,

		"telemetry.enabled":          false,
		"telemetry.endpoint":         "otel-collector:4317",
		"telemetry.insecure":         true,
		"telemetry.sampler_ratio":    1.0,
		"telemetry.reconnect_period": "5s",
		"telemetry.timeout":          "5s",

		"http.addr":             ":8095",
		"http.read_timeout":     "10s",
		"http.write_timeout":    "15s",
		"http.idle_timeout":     "60s",
		"http.shutdown_timeout": "5s",
		"http.metrics_path":     "/metrics",
		"http.healthz_path":     "/healthz",
		"http.readyz_path":      "/readyz",
		"http.cors_origins":     []string{},

		"realtime.ping_interval":         "30s",
		"realtime.health_timeout":        "5s",
		"realtime.system_log_size":       100,
		"realtime.channels":              []string{},
		"realtime.health_check_interval": "1m",

		"ws.url":                          "ws://localhost:3001/realtime",
		"ws.read_timeout":                 "60s",
		"ws.write_timeout":                "5s",
		"ws.handshake_timeout":            "10s",
		"ws.backoff.initial_interval":     "1s",
		"ws.backoff.randomization_factor": 0.5,
		"ws.backoff.multiplier":           2.0,
		"ws.backoff.max_interval":         "30s",
		"ws.backoff.max_elapsed_time":     "0s",

		"kafka.enabled":       false,
		"kafka.topic":         "realtime.updates",
		"kafka.brokers":       []string{"kafka:9092"},
		"kafka.required_acks": "all",
		"kafka.timeout":       "15s",
		"kafka.compression":   "none",

		"redis.enabled":      false,
		"redis.addr":         "redis:6379",
		"redis.password":     "",
		"redis.db":           0,
		"redis.key_prefix":   "realtime:last:",
		"redis.ttl":          "10m",
		"redis.dial_timeout": "5s",

		"forwarder.queue_size":    1024,
		"forwarder.write_timeout": "5s",
	})
}

// Load читает YAML (если path не пуст), ENV с префиксом REALTIME и дефолты.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := newLoader().Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}

	// HTTP
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	for key, path := range map[string]string{
		"http.metrics_path": c.HTTP.MetricsPath,
		"http.healthz_path": c.HTTP.HealthzPath,
		"http.readyz_path":  c.HTTP.ReadyzPath,
	} {
		if path != "" && !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with '/'", key)
		}
	}

	// WS
	if err := c.WS.Validate(); err != nil {
		return fmt.Errorf("ws: %w", err)
	}

	// Realtime
	for _, ch := range c.Realtime.Channels {
		if _, _, _, err := realtime.ParseChannel(ch); err != nil {
			return fmt.Errorf("realtime.channels: %w", err)
		}
	}
	if c.Realtime.HealthCheckInterval < 0 {
		return fmt.Errorf("realtime.health_check_interval must be >= 0")
	}
	if c.Realtime.HealthTimeout < 0 || c.Realtime.PingInterval < 0 {
		return fmt.Errorf("realtime timeouts must be >= 0")
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must contain at least one entry")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka.enabled")
		}
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled")
	}

	if c.Forwarder.QueueSize <= 0 {
		return fmt.Errorf("forwarder.queue_size must be > 0")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error]")
	}
	return nil
}

// Print выводит текущий конфиг в stdout, секреты скрыты.
func (c *Config) Print() {
	_ = configloader.Print(os.Stdout, c)
}
