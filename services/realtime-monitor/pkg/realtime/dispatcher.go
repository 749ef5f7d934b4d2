// services/realtime-monitor/pkg/realtime/dispatcher.go
package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/common/safe"
)

var tracer = otel.Tracer("realtime/dispatcher")

// Dispatcher маршрутизирует входящие события в колбэки канала.
type Dispatcher struct {
	registry *Registry
	syslog   *SystemLog
	log      *logger.Logger
}

func NewDispatcher(registry *Registry, syslog *SystemLog, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		syslog:   syslog,
		log:      log.Named("dispatcher"),
	}
}

// Dispatch разбирает env и вызывает колбэки его канала в порядке подписки.
// Возвращает число колбэков, отработавших без ошибки. Невалидные и
// неизвестные события молча отбрасываются.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) int {
	ctx, span := tracer.Start(ctx, "Dispatcher.Dispatch",
		trace.WithAttributes(attribute.String("event", env.Event)))
	defer span.End()

	var u Update
	switch env.Event {
	case EventMarketUpdate, EventAnalysisUpdate:
		typ, decode := TypeMarket, DecodeMarketUpdate
		if env.Event == EventAnalysisUpdate {
			typ, decode = TypeAnalysis, DecodeAnalysisUpdate
		}
		mu, ok := decode(env.Payload)
		if !ok {
			droppedTotal.WithLabelValues(dropMalformed).Inc()
			d.log.WithContext(ctx).Debug("malformed payload dropped", zap.String("event", env.Event))
			return 0
		}
		u = Update{
			Channel:      FormatChannel(typ, mu.Symbol, mu.Timeframe),
			Event:        env.Event,
			Symbol:       mu.Symbol,
			Timeframe:    mu.Timeframe,
			AnalysisType: mu.AnalysisType,
			Data:         mu.Data,
			ReceivedAt:   env.Timestamp,
		}

	case EventSystemMessage:
		msg, ok := DecodeSystemMessage(env.Payload)
		if !ok {
			droppedTotal.WithLabelValues(dropMalformed).Inc()
			d.log.WithContext(ctx).Debug("malformed system message dropped")
			return 0
		}
		msg.Timestamp = env.Timestamp
		return d.DispatchSystem(ctx, msg)

	default:
		droppedTotal.WithLabelValues(dropUnknownEvent).Inc()
		return 0
	}

	span.SetAttributes(attribute.String("channel", u.Channel))
	return d.deliver(ctx, u)
}

// DispatchSystem пишет сообщение в журнал и рассылает его в ChannelSystem.
func (d *Dispatcher) DispatchSystem(ctx context.Context, msg SystemMessage) int {
	d.syslog.Append(msg)
	data, err := json.Marshal(msg)
	if err != nil {
		return 0
	}
	return d.deliver(ctx, Update{
		Channel:    ChannelSystem,
		Event:      EventSystemMessage,
		Data:       data,
		ReceivedAt: msg.Timestamp,
	})
}

func (d *Dispatcher) deliver(ctx context.Context, u Update) int {
	callbacks := d.registry.CallbacksFor(u.Channel)
	if len(callbacks) == 0 {
		// сервер может слать в канал, от которого мы только что отписались
		droppedTotal.WithLabelValues(dropNoSubscribers).Inc()
		return 0
	}

	delivered := 0
	for _, cb := range callbacks {
		err := safe.Call(func() error { return cb.fn(u) })
		if err == nil {
			delivered++
			continue
		}
		kind := "error"
		var pe *safe.PanicError
		if errors.As(err, &pe) {
			kind = "panic"
		}
		callbackFailures.WithLabelValues(kind).Inc()
		d.log.WithContext(ctx).Warn("callback failed",
			zap.String("channel", u.Channel),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	if delivered > 0 {
		dispatchedTotal.WithLabelValues(u.Event).Inc()
	}
	return delivered
}
