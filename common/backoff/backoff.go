// common/backoff/backoff.go
//
// Пакет backoff: экспоненциальные повторы поверх cenkalti/backoff с метриками
// по операциям (ws-dial, kafka-publish, redis-ping …) и хуками на каждую неудачу.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

var serviceLabel = "unknown"

// SetServiceLabel вызывается из common.InitServiceName до первого Execute.
func SetServiceLabel(name string) { serviceLabel = name }

var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "backoff", Name: "retries_total",
		Help: "Failed attempts followed by a retry",
	}, []string{"service", "op"})
	gaveUpTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "backoff", Name: "gave_up_total",
		Help: "Operations abandoned after exhausting the retry budget",
	}, []string{"service", "op"})
	recoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "backoff", Name: "recovered_total",
		Help: "Operations that succeeded after at least one retry",
	}, []string{"service", "op"})
	retryDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "realtime", Subsystem: "backoff", Name: "retry_delay_seconds",
		Help:    "Delay chosen before the next attempt",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
	}, []string{"service", "op"})
)

// Config: параметры экспоненциального back-off. Нули → дефолты.
type Config struct {
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"` // 0…1, джиттер
	Multiplier          float64       `mapstructure:"multiplier"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`

	// Ноль → повторять, пока жив ctx (так работает реконнект WS).
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time"`

	// Ноль → одна попытка ограничена только ctx.
	PerAttemptTimeout time.Duration `mapstructure:"per_attempt_timeout"`
}

func (c *Config) applyDefaults() {
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.RandomizationFactor <= 0 {
		c.RandomizationFactor = 0.5
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
}

func (c Config) validate() error {
	if c.RandomizationFactor < 0 || c.RandomizationFactor > 1 {
		return fmt.Errorf("backoff: randomization_factor must be in [0,1], got %v", c.RandomizationFactor)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("backoff: multiplier must be >= 1, got %v", c.Multiplier)
	}
	if c.MaxElapsedTime < 0 || c.PerAttemptTimeout < 0 {
		return errors.New("backoff: durations must be >= 0")
	}
	return nil
}

func (c Config) strategy() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialInterval
	bo.RandomizationFactor = c.RandomizationFactor
	bo.Multiplier = c.Multiplier
	bo.MaxInterval = c.MaxInterval
	bo.MaxElapsedTime = c.MaxElapsedTime // 0 у cenkalti = бесконечно
	bo.Reset()
	return bo
}

// RetryableFunc: единица работы, которую можно повторить.
type RetryableFunc func(ctx context.Context) error

// Attempt описывает неудачную попытку перед паузой.
type Attempt struct {
	Op    string
	N     int // 1-based
	Err   error
	Delay time.Duration
}

// NotifyFunc вызывается после каждой неудачи, до сна. Вызывается синхронно.
type NotifyFunc func(ctx context.Context, a Attempt)

// ErrMaxRetries: бюджет повторов исчерпан, fn всё ещё падает.
type ErrMaxRetries struct {
	Op       string
	Err      error
	Attempts int
}

func (e *ErrMaxRetries) Error() string {
	return fmt.Sprintf("backoff: %s: %d attempt(s) failed: %v", e.Op, e.Attempts, e.Err)
}

func (e *ErrMaxRetries) Unwrap() error { return e.Err }

// Permanent помечает ошибку как неповторяемую: Execute вернёт её сразу.
func Permanent(err error) error { return backoff.Permanent(err) }

// Execute выполняет fn с экспоненциальными паузами.
//
//   - nil, если fn в итоге успешна;
//   - ctx.Err(), если контекст отменён (это не считается отказом);
//   - ошибку Permanent как есть;
//   - *ErrMaxRetries, если вышел MaxElapsedTime.
func Execute(ctx context.Context, op string, cfg Config, log *logger.Logger, fn RetryableFunc, hooks ...NotifyFunc) error {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	var (
		attempts  int
		permanent bool
	)
	operation := func() error {
		attempts++
		actx, cancel := ctx, context.CancelFunc(func() {})
		if cfg.PerAttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, cfg.PerAttemptTimeout)
		}
		defer cancel()

		err := fn(actx)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			permanent = true
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		retriesTotal.WithLabelValues(serviceLabel, op).Inc()
		retryDelay.WithLabelValues(serviceLabel, op).Observe(delay.Seconds())
		log.Warn("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		a := Attempt{Op: op, N: attempts, Err: err, Delay: delay}
		for _, h := range hooks {
			h(ctx, a)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(cfg.strategy(), ctx), notify)
	switch {
	case err == nil:
		if attempts > 1 {
			recoveredTotal.WithLabelValues(serviceLabel, op).Inc()
			log.Info("recovered", zap.String("op", op), zap.Int("attempts", attempts))
		}
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}

	if permanent {
		// cenkalti уже снял обёртку PermanentError
		return err
	}
	gaveUpTotal.WithLabelValues(serviceLabel, op).Inc()
	log.Error("giving up", zap.String("op", op), zap.Int("attempts", attempts), zap.Error(err))
	return &ErrMaxRetries{Op: op, Err: err, Attempts: attempts}
}
