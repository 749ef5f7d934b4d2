package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

type sentFrame struct {
	Event   string
	Payload any
}

// fakeTransport: Transport в памяти: On/Emit от Emitter, Send пишет в журнал.
type fakeTransport struct {
	*Emitter

	mu          sync.Mutex
	sent        []sentFrame
	connectErr  error
	sendErr     error
	onSend      func(event string, payload any)
	disconnects int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{Emitter: NewEmitter()}
}

func (f *fakeTransport) Connect(context.Context) error { return f.connectErr }

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Send(event string, payload any) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, sentFrame{Event: event, Payload: payload})
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(event, payload)
	}
	return nil
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) setOnSend(fn func(event string, payload any)) {
	f.mu.Lock()
	f.onSend = fn
	f.mu.Unlock()
}

func (f *fakeTransport) emit(t *testing.T, event string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	f.Emit(event, b)
}

func (f *fakeTransport) frames(event string) []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentFrame
	for _, fr := range f.sent {
		if fr.Event == event {
			out = append(out, fr)
		}
	}
	return out
}

// channels: каналы из subscribe/unsubscribe в порядке отправки.
func (f *fakeTransport) channels(event string) []string {
	var out []string
	for _, fr := range f.frames(event) {
		if req, ok := fr.Payload.(ChannelRequest); ok {
			out = append(out, req.Channel)
		}
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

// replyPong отвечает на каждый ping синхронным pong.
func (f *fakeTransport) replyPong(t *testing.T) {
	f.setOnSend(func(event string, payload any) {
		if event != EventPing {
			return
		}
		req := payload.(PingRequest)
		f.emit(t, EventPong, Pong{ClientTime: req.ClientTime, ServerTime: time.Now().UnixMilli()})
	})
}

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	c, err := New(ft, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, ft
}

// recorder: колбэк, запоминающий полученные апдейты.
type recorder struct {
	mu  sync.Mutex
	got []Update
}

func (r *recorder) callback() *Callback {
	return Func(func(u Update) {
		r.mu.Lock()
		r.got = append(r.got, u)
		r.mu.Unlock()
	})
}

func (r *recorder) updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.got...)
}

func marketPayload(symbol, timeframe string) map[string]any {
	return map[string]any{
		"symbol":    symbol,
		"timeframe": timeframe,
		"data":      map[string]any{"open": 1, "close": 2},
	}
}
