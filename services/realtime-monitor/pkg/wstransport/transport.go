// services/realtime-monitor/pkg/wstransport/transport.go
package wstransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/backoff"
	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
)

// Frame: JSON-кадр на проводе.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// lifecycle-события принадлежат транспорту; сервер их подделать не может.
var reserved = map[string]bool{
	realtime.EventConnect:      true,
	realtime.EventDisconnect:   true,
	realtime.EventConnectError: true,
}

var errClosed = errors.New("wstransport: closed")

// Transport: realtime.Transport поверх gorilla/websocket с авто-reconnect.
type Transport struct {
	*realtime.Emitter

	cfg    Config
	log    *logger.Logger
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool

	writeMu sync.Mutex

	// >0, пока цикл чтения внутри обработчика события
	inHandler atomic.Int32
}

var _ realtime.Transport = (*Transport)(nil)

// New создаёт транспорт. Соединение открывается в Connect.
func New(cfg Config, log *logger.Logger) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{
		Emitter: realtime.NewEmitter(),
		cfg:     cfg,
		log:     log.Named("ws-transport"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}, nil
}

// Connect запускает фоновый цикл dial → read → reconnect и сразу возвращается.
// Результат подключения приходит событиями connect / connect_error.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errClosed
	}
	if t.started {
		return fmt.Errorf("wstransport: already connecting")
	}
	t.started = true
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(runCtx)
	return nil
}

// Disconnect закрывает соединение и останавливает переподключение.
// Обычно ждёт выхода цикла чтения. Вызванный из обработчика события (то есть
// на самом цикле чтения, например realtime.Client.Close из колбэка подписки)
// не ждёт: цикл завершится сам, как только обработчик вернётся.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	conn, done := t.conn, t.done
	t.mu.Unlock()

	var err error
	if conn != nil {
		t.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = conn.Close()
	}
	if done != nil && t.inHandler.Load() == 0 {
		<-done
	}
	return err
}

// Send сериализует payload в кадр и пишет его. Безопасен из разных goroutine.
func (t *Transport) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("wstransport: marshal %s: %w", event, err)
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return realtime.ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := conn.WriteJSON(Frame{Event: event, Data: data, Timestamp: time.Now().UnixMilli()}); err != nil {
		return fmt.Errorf("wstransport: write %s: %w", event, err)
	}
	incFrame("out", event)
	return nil
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.done)

	for {
		if ctx.Err() != nil {
			return
		}

		var conn *websocket.Conn
		err := backoff.Execute(ctx, "ws-dial", t.cfg.Backoff, t.log,
			func(ctx context.Context) error {
				c, _, dialErr := t.dialer.DialContext(ctx, t.cfg.URL, nil)
				if dialErr != nil {
					incConnect("error")
					return dialErr
				}
				conn = c
				return nil
			},
			func(_ context.Context, a backoff.Attempt) {
				t.emitJSON(realtime.EventConnectError, map[string]any{
					"error":   a.Err.Error(),
					"attempt": a.N,
					"retryIn": a.Delay.Milliseconds(),
				})
			},
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Error("ws: giving up reconnecting", zap.Error(err))
			t.emitJSON(realtime.EventConnectError, map[string]any{"error": err.Error(), "final": true})
			return
		}
		incConnect("ok")

		if !t.attach(conn) {
			_ = conn.Close()
			return
		}
		t.log.Info("ws: connected", zap.String("url", t.cfg.URL))
		t.emit(realtime.EventConnect, nil)

		reason := t.readLoop(ctx, conn)

		t.detach(conn)
		t.log.Warn("ws: connection closed", zap.String("reason", reason))
		t.emitJSON(realtime.EventDisconnect, map[string]string{"reason": reason})
	}
}

func (t *Transport) attach(conn *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conn = conn
	return true
}

func (t *Transport) detach(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	_ = conn.Close()
}

// readLoop читает кадры и эмитит их последовательно. Возвращает причину обрыва.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) string {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	})
	go t.keepalive(connCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "client disconnect"
			}
			return err.Error()
		}
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			wsDecodeErrors.Inc()
			t.log.Debug("ws: undecodable frame", zap.ByteString("frame", data))
			continue
		}
		if reserved[f.Event] {
			wsDecodeErrors.Inc()
			continue
		}
		incFrame("in", f.Event)
		t.emit(f.Event, f.Data)
	}
}

// keepalive шлёт control-ping каждые ReadTimeout/3 и закрывает conn при отмене ctx.
func (t *Transport) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(t.cfg.ReadTimeout / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				t.log.Debug("ws: keepalive ping failed", zap.Error(err))
			}
		}
	}
}

// emit вызывается только из run: события идут последовательно.
func (t *Transport) emit(event string, payload json.RawMessage) {
	t.inHandler.Add(1)
	defer t.inHandler.Add(-1)
	t.Emit(event, payload)
}

func (t *Transport) emitJSON(event string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	t.emit(event, b)
}
