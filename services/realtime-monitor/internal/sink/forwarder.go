// services/realtime-monitor/internal/sink/forwarder.go
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/common/safe"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
)

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

// Forwarder развязывает колбэки подписок и медленные sink-и: колбэк только
// кладёт апдейт в ограниченную очередь, один воркер пишет его во все sink-и.
type Forwarder struct {
	sinks        []Sink
	queue        chan realtime.Update
	writeTimeout time.Duration
	log          *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewForwarder(queueSize int, writeTimeout time.Duration, log *logger.Logger, sinks ...Sink) *Forwarder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Forwarder{
		sinks:        sinks,
		queue:        make(chan realtime.Update, queueSize),
		writeTimeout: writeTimeout,
		log:          log.Named("forwarder"),
	}
}

// Enqueue не блокирует: при полной очереди апдейт отбрасывается.
func (f *Forwarder) Enqueue(u realtime.Update) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		droppedTotal.Inc()
		return false
	}
	select {
	case f.queue <- u:
		enqueuedTotal.Inc()
		queueDepth.Set(float64(len(f.queue)))
		return true
	default:
		droppedTotal.Inc()
		return false
	}
}

// Callback: колбэк подписки, который ставит апдейт в очередь.
func (f *Forwarder) Callback() *realtime.Callback {
	return realtime.Func(func(u realtime.Update) { f.Enqueue(u) })
}

// Run пишет апдейты из очереди до отмены ctx, затем дописывает то,
// что уже лежит в очереди, и возвращает nil.
func (f *Forwarder) Run(ctx context.Context) error {
	if len(f.sinks) == 0 {
		f.log.Info("no sinks configured, forwarder idle")
		<-ctx.Done()
		return nil
	}

	g := safe.New(ctx, f.log)
	g.Go(func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case u := <-f.queue:
				queueDepth.Set(float64(len(f.queue)))
				f.writeAll(ctx, u)
			}
		}
	})
	if err := g.Wait(); err != nil {
		f.log.Error("forwarder worker stopped", zap.Error(err))
	}

	f.drain()
	return nil
}

func (f *Forwarder) drain() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	n := 0
	for {
		select {
		case u := <-f.queue:
			f.writeAll(context.Background(), u)
			n++
		default:
			queueDepth.Set(0)
			if n > 0 {
				f.log.Info("queue drained", zap.Int("updates", n))
			}
			return
		}
	}
}

func (f *Forwarder) writeAll(ctx context.Context, u realtime.Update) {
	for _, s := range f.sinks {
		wctx, cancel := context.WithTimeout(ctx, f.writeTimeout)
		start := time.Now()
		err := safe.Call(func() error { return s.Write(wctx, u) })
		cancel()
		writeLatency.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			writesTotal.WithLabelValues(s.Name(), "error").Inc()
			f.log.WithContext(ctx).Warn("sink write failed",
				zap.String("sink", s.Name()),
				zap.String("channel", u.Channel),
				zap.Error(err),
			)
			continue
		}
		writesTotal.WithLabelValues(s.Name(), "ok").Inc()
	}
}

// Ping проверяет sink-и, умеющие Pinger; ошибки склеиваются с именем sink-а.
func (f *Forwarder) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range f.sinks {
		p, ok := s.(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close закрывает все sink-и. Вызывать после возврата Run.
func (f *Forwarder) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
