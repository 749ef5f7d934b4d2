package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
)

type published struct {
	topic      string
	key, value []byte
}

type fakeProducer struct {
	msgs   []published
	err    error
	closed bool
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, key, value})
	return nil
}

func (p *fakeProducer) Ping(context.Context) error { return p.err }

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaSink_PublishesKeyedJSON(t *testing.T) {
	p := &fakeProducer{}
	s := NewKafka(p, "realtime.updates", logger.NewNop())

	if err := s.Write(context.Background(), update("market:BTCUSDT:1h")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(p.msgs) != 1 {
		t.Fatalf("published %d messages", len(p.msgs))
	}
	m := p.msgs[0]
	if m.topic != "realtime.updates" || string(m.key) != "market:BTCUSDT:1h" {
		t.Errorf("topic=%q key=%q", m.topic, m.key)
	}
	var got realtime.Update
	if err := json.Unmarshal(m.value, &got); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if got.Channel != "market:BTCUSDT:1h" || got.Symbol != "BTCUSDT" {
		t.Errorf("decoded = %+v", got)
	}

	if err := s.Close(); err != nil || !p.closed {
		t.Fatalf("Close: %v closed=%v", err, p.closed)
	}
}

func TestKafkaSink_PublishError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	s := NewKafka(p, "t", logger.NewNop())
	err := s.Write(context.Background(), update("market:BTCUSDT:1h"))
	if !errors.Is(err, p.err) {
		t.Fatalf("err = %v", err)
	}
	if s.Ping(context.Background()) == nil {
		t.Fatal("Ping must surface producer error")
	}
}
