package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/YaganovValera/crypto-realtime/common/backoff"
	"github.com/YaganovValera/crypto-realtime/common/logger"
)

func TestBuildSaramaConfig(t *testing.T) {
	cfg := Config{Brokers: []string{"k:9092"}}
	cfg.applyDefaults()

	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Producer.RequiredAcks != sarama.WaitForAll {
		t.Errorf("RequiredAcks = %v; want WaitForAll", sc.Producer.RequiredAcks)
	}
	if !sc.Producer.Idempotent || sc.Net.MaxOpenRequests != 1 {
		t.Error("expected idempotent producer with one in-flight request")
	}
	if sc.Producer.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v; want 5s", sc.Producer.Timeout)
	}

	cfg.RequiredAcks = "leader"
	cfg.Compression = "ZSTD"
	sc, err = buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Producer.Idempotent {
		t.Error("idempotence must be off without WaitForAll")
	}
	if sc.Producer.Compression != sarama.CompressionZSTD {
		t.Errorf("Compression = %v; want zstd", sc.Producer.Compression)
	}
}

func TestBuildSaramaConfig_Invalid(t *testing.T) {
	if _, err := buildSaramaConfig(Config{RequiredAcks: "some", Compression: "none"}); err == nil {
		t.Error("expected error for invalid acks")
	}
	if _, err := buildSaramaConfig(Config{RequiredAcks: "all", Compression: "brotli"}); err == nil {
		t.Error("expected error for invalid compression")
	}
}

func TestNew_RequiresBrokers(t *testing.T) {
	if _, err := New(context.Background(), Config{}, logger.NewNop()); err == nil {
		t.Fatal("expected error for empty brokers")
	}
}

func TestPublish_SendsKeyAndValue(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "realtime.updates" {
			return errors.New("wrong topic " + msg.Topic)
		}
		k, _ := msg.Key.Encode()
		if string(k) != "market:BTCUSDT:1h" {
			return errors.New("wrong key " + string(k))
		}
		return nil
	})

	p := newFromSync(mp, nil, backoff.Config{}, logger.NewNop())
	if err := p.Publish(context.Background(), "realtime.updates", []byte("market:BTCUSDT:1h"), []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublish_PermanentErrorNotRetried(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageAndFail(sarama.ErrMessageSizeTooLarge)

	p := newFromSync(mp, nil, backoff.Config{InitialInterval: time.Millisecond}, logger.NewNop())
	err := p.Publish(context.Background(), "t", nil, []byte("x"))
	if !errors.Is(err, sarama.ErrMessageSizeTooLarge) {
		t.Fatalf("err = %v; want ErrMessageSizeTooLarge", err)
	}
	_ = p.Close()
}

func TestPing_NoClient(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	p := newFromSync(mp, nil, backoff.Config{}, logger.NewNop())
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected error without client")
	}
	_ = p.Close()
}
