// common/httpserver/config.go
package httpserver

import (
	"errors"
	"strings"
	"time"
)

// Config: адрес, таймауты и пути служебных эндпоинтов.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	HealthzPath     string        `mapstructure:"healthz_path"`
	ReadyzPath      string        `mapstructure:"readyz_path"`
}

func orDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

func orPath(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func (c *Config) applyDefaults() {
	orDuration(&c.ReadTimeout, 10*time.Second)
	// /status/health держит запрос до health_timeout клиента
	orDuration(&c.WriteTimeout, 15*time.Second)
	orDuration(&c.IdleTimeout, time.Minute)
	orDuration(&c.ShutdownTimeout, 5*time.Second)
	orPath(&c.MetricsPath, "/metrics")
	orPath(&c.HealthzPath, "/healthz")
	orPath(&c.ReadyzPath, "/readyz")
}

func (c Config) validate() error {
	if c.Addr == "" {
		return errors.New("httpserver: addr is required")
	}
	for _, p := range []string{c.MetricsPath, c.HealthzPath, c.ReadyzPath} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("httpserver: probe paths must start with '/'")
		}
	}
	return nil
}
