// common/safe/safe.go
//
// Пакет safe изолирует пользовательский код (колбэки подписчиков, sink-и)
// от паник: паника превращается в *PanicError и логируется, процесс живёт.
package safe

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap: panic(err) остаётся видимым для errors.Is/As.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Call вызывает fn; паника → *PanicError, обычная ошибка возвращается как есть.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Group: горутины с общим ctx; первая ошибка или паника отменяет остальных.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

func New(ctx context.Context, log *logger.Logger) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{ctx: ctx, cancel: cancel, log: log.Named("safe")}
}

func (g *Group) Go(fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := Call(func() error { return fn(g.ctx) })
		if err == nil {
			return
		}

		var pe *PanicError
		switch {
		case errors.As(err, &pe):
			g.log.Error("panic recovered", zap.Any("panic", pe.Value), zap.ByteString("stack", pe.Stack))
		case g.ctx.Err() == nil:
			g.log.Error("goroutine failed", zap.Error(err))
		}
		g.errOnce.Do(func() { g.err = err })
		g.cancel()
	}()
}

// Wait ждёт все горутины и возвращает первую ошибку.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.cancel()
	return g.err
}

func (g *Group) Context() context.Context { return g.ctx }
