// services/realtime-monitor/pkg/wstransport/config.go
package wstransport

import (
	"fmt"
	"net/url"
	"time"

	"github.com/YaganovValera/crypto-realtime/common/backoff"
)

// Config: параметры WebSocket-транспорта.
type Config struct {
	URL              string         `mapstructure:"url"`
	ReadTimeout      time.Duration  `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration  `mapstructure:"write_timeout"`
	HandshakeTimeout time.Duration  `mapstructure:"handshake_timeout"`
	Backoff          backoff.Config `mapstructure:"backoff"`
}

// ApplyDefaults заполняет нулевые поля.
func (c *Config) ApplyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// Validate проверяет обязательные поля.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("wstransport: URL is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("wstransport: invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("wstransport: URL scheme must be ws or wss, got %q", u.Scheme)
	}
	return nil
}
