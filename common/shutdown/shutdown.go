// common/shutdown/shutdown.go
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

// Func: шаг остановки компонента.
type Func func(ctx context.Context) error

// GracefulShutdown выполняет fn с собственным дедлайном: родительский ctx
// к этому моменту обычно уже отменён.
func GracefulShutdown(name string, timeout time.Duration, fn Func, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	fields := []zap.Field{zap.String("component", name), zap.Duration("took", time.Since(start))}
	if err != nil {
		log.Error("shutdown failed", append(fields, zap.Error(err))...)
		return
	}
	log.Info("stopped", fields...)
}

// Closer: io.Closer-подобный Close → Func.
func Closer(closeFn func() error) Func {
	return func(context.Context) error { return closeFn() }
}

// SignalContext отменяется по SIGINT/SIGTERM; сигнал пишется в лог.
// Второй сигнал уже не перехватывается и завершает процесс.
func SignalContext(parent context.Context, log *logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
