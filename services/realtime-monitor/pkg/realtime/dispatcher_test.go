package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

func newTestDispatcher() (*Dispatcher, *Registry, *SystemLog) {
	reg := NewRegistry()
	syslog := NewSystemLog(10)
	return NewDispatcher(reg, syslog, logger.NewNop()), reg, syslog
}

func envelope(t *testing.T, event string, v any) Envelope {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return Envelope{Event: event, Payload: b, Timestamp: time.Now()}
}

func TestDispatch_RoutesByDerivedChannel(t *testing.T) {
	d, reg, _ := newTestDispatcher()
	var market, analysis recorder
	reg.Subscribe("market:BTCUSDT:1h", market.callback())
	reg.Subscribe("analysis:BTCUSDT:1h", analysis.callback())

	if n := d.Dispatch(context.Background(), envelope(t, EventMarketUpdate, marketPayload("BTCUSDT", "1h"))); n != 1 {
		t.Fatalf("delivered = %d; want 1", n)
	}
	p := marketPayload("BTCUSDT", "1h")
	p["analysisType"] = "trend"
	d.Dispatch(context.Background(), envelope(t, EventAnalysisUpdate, p))

	got := market.updates()
	if len(got) != 1 || got[0].Channel != "market:BTCUSDT:1h" || got[0].Symbol != "BTCUSDT" {
		t.Fatalf("market updates = %+v", got)
	}
	if string(got[0].Data) != `{"close":2,"open":1}` {
		t.Errorf("Data = %s", got[0].Data)
	}
	a := analysis.updates()
	if len(a) != 1 || a[0].AnalysisType != "trend" || a[0].Event != EventAnalysisUpdate {
		t.Fatalf("analysis updates = %+v", a)
	}
}

func TestDispatch_DedupSameCallback(t *testing.T) {
	d, reg, _ := newTestDispatcher()
	var rec recorder
	cb := rec.callback()
	reg.Subscribe("market:BTCUSDT:1h", cb)
	reg.Subscribe("market:BTCUSDT:1h", cb)

	d.Dispatch(context.Background(), envelope(t, EventMarketUpdate, marketPayload("BTCUSDT", "1h")))
	if got := len(rec.updates()); got != 1 {
		t.Fatalf("invocations = %d; want 1", got)
	}
}

func TestDispatch_IsolatesFailingCallbacks(t *testing.T) {
	d, reg, _ := newTestDispatcher()
	var order []string
	reg.Subscribe("market:BTCUSDT:1h", NewCallback(func(Update) error {
		order = append(order, "panics")
		panic("subscriber bug")
	}))
	reg.Subscribe("market:BTCUSDT:1h", NewCallback(func(Update) error {
		order = append(order, "errors")
		return errors.New("subscriber error")
	}))
	reg.Subscribe("market:BTCUSDT:1h", NewCallback(func(Update) error {
		order = append(order, "ok")
		return nil
	}))

	n := d.Dispatch(context.Background(), envelope(t, EventMarketUpdate, marketPayload("BTCUSDT", "1h")))
	if n != 1 {
		t.Errorf("delivered = %d; want 1", n)
	}
	want := []string{"panics", "errors", "ok"}
	if len(order) != len(want) {
		t.Fatalf("order = %v; want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v; want %v", order, want)
		}
	}

	// следующее событие тоже доставляется
	d.Dispatch(context.Background(), envelope(t, EventMarketUpdate, marketPayload("BTCUSDT", "1h")))
	if len(order) != 6 {
		t.Errorf("second dispatch ran %d callbacks; want 3", len(order)-3)
	}
}

func TestDispatch_RejectsMalformedPayload(t *testing.T) {
	d, reg, _ := newTestDispatcher()
	var rec recorder
	reg.Subscribe("market:BTCUSDT:1h", rec.callback())
	reg.Subscribe("market:BTCUSDT", rec.callback())

	payloads := []any{
		map[string]any{"symbol": "BTCUSDT", "data": map[string]any{}}, // нет timeframe
		map[string]any{"symbol": "BTCUSDT", "timeframe": "1h"},        // нет data
		"not an object",
		nil,
	}
	for _, p := range payloads {
		if n := d.Dispatch(context.Background(), envelope(t, EventMarketUpdate, p)); n != 0 {
			t.Errorf("payload %v delivered to %d callbacks", p, n)
		}
	}
	if got := len(rec.updates()); got != 0 {
		t.Fatalf("callbacks invoked %d times", got)
	}
}

func TestDispatch_UnknownEventAndNoSubscribers(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if n := d.Dispatch(context.Background(), envelope(t, "trade:update", marketPayload("BTCUSDT", "1h"))); n != 0 {
		t.Errorf("unknown event delivered to %d", n)
	}
	if n := d.Dispatch(context.Background(), envelope(t, EventMarketUpdate, marketPayload("ETHUSDT", "1m"))); n != 0 {
		t.Errorf("unsubscribed channel delivered to %d", n)
	}
}

func TestDispatch_SystemMessage(t *testing.T) {
	d, reg, syslog := newTestDispatcher()
	var rec recorder
	reg.Subscribe(ChannelSystem, rec.callback())

	d.Dispatch(context.Background(), envelope(t, EventSystemMessage, map[string]string{
		"message": "maintenance in 5m", "level": "warning",
	}))
	d.Dispatch(context.Background(), envelope(t, EventSystemMessage, map[string]string{
		"message": "bad", "level": "fatal",
	}))

	msgs := syslog.Messages()
	if len(msgs) != 1 || msgs[0].Level != LevelWarning || msgs[0].Timestamp.IsZero() {
		t.Fatalf("system log = %+v", msgs)
	}
	got := rec.updates()
	if len(got) != 1 || got[0].Channel != ChannelSystem {
		t.Fatalf("system updates = %+v", got)
	}
	decoded, ok := DecodeSystemMessage(got[0].Data)
	if !ok || decoded.Message != "maintenance in 5m" {
		t.Errorf("system update data = %s", got[0].Data)
	}
}
