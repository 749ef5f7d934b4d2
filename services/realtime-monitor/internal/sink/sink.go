// services/realtime-monitor/internal/sink/sink.go
//
// Пакет sink пересылает апдейты подписок во внешние хранилища:
// Kafka (поток) и Redis (последнее значение по каналу).
package sink

import (
	"context"

	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
)

// Sink принимает апдейты от Forwarder. Write вызывается из одной goroutine.
type Sink interface {
	Name() string
	Write(ctx context.Context, u realtime.Update) error
	Close() error
}

// Pinger: sink, доступность которого входит в readiness сервиса.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Pinger = (*KafkaSink)(nil)
	_ Pinger = (*RedisSink)(nil)
)
