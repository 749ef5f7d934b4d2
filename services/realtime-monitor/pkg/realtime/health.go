// services/realtime-monitor/pkg/realtime/health.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LatencySample: последний измеренный round trip.
type LatencySample struct {
	ClientSentAt      time.Time     `json:"clientSentAt"`
	ServerRespondedAt time.Time     `json:"serverRespondedAt"`
	RoundTrip         time.Duration `json:"roundTripNs"`
}

type healthMonitor struct {
	mu        sync.Mutex
	lastSent  int64 // ms, строго возрастает
	sample    LatencySample
	hasSample bool
}

// nextClientTime: уникальный clientTime, чтобы параллельные проверки
// не матчили чужой pong.
func (h *healthMonitor) nextClientTime(now time.Time) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= h.lastSent {
		ms = h.lastSent + 1
	}
	h.lastSent = ms
	return ms
}

func (h *healthMonitor) record(s LatencySample) {
	h.mu.Lock()
	h.sample, h.hasSample = s, true
	h.mu.Unlock()
	latencySeconds.Set(s.RoundTrip.Seconds())
}

func (h *healthMonitor) latest() (LatencySample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sample, h.hasSample
}

// Latency: последний round trip; 0, если замеров ещё не было.
func (c *Client) Latency() time.Duration {
	s, _ := c.health.latest()
	return s.RoundTrip
}

func (c *Client) LatencySample() (LatencySample, bool) { return c.health.latest() }

// CheckHealth шлёт ping и ждёт pong с тем же clientTime не дольше HealthTimeout.
// Без соединения сразу возвращает ErrNotConnected; по таймауту *TimeoutError
// (errors.Is(err, ErrHealthCheckTimeout)). Слушатель pong снимается на любом исходе.
func (c *Client) CheckHealth(ctx context.Context) (time.Duration, error) {
	if !c.IsConnected() {
		healthChecks.WithLabelValues("not_connected").Inc()
		return 0, ErrNotConnected
	}

	clientTime := c.health.nextClientTime(c.now())
	result := make(chan time.Duration, 1)
	off := c.transport.On(EventPong, func(payload json.RawMessage) {
		pong, ok := decodePong(payload)
		if !ok || pong.ClientTime != clientTime {
			return
		}
		select {
		case result <- c.roundTrip(clientTime, pong.ServerTime):
		default:
		}
	})
	defer off()

	if err := c.transport.Send(EventPing, PingRequest{ClientTime: clientTime, Timestamp: clientTime}); err != nil {
		healthChecks.WithLabelValues("send_error").Inc()
		return 0, fmt.Errorf("realtime: health ping: %w", err)
	}
	wireRequests.WithLabelValues(EventPing, reasonHealth).Inc()

	timer := time.NewTimer(c.cfg.HealthTimeout)
	defer timer.Stop()

	select {
	case rtt := <-result:
		healthChecks.WithLabelValues("ok").Inc()
		return rtt, nil
	case <-timer.C:
		healthChecks.WithLabelValues("timeout").Inc()
		return 0, &TimeoutError{Timeout: c.cfg.HealthTimeout}
	case <-ctx.Done():
		healthChecks.WithLabelValues("cancelled").Inc()
		return 0, ctx.Err()
	}
}

// onPong: пассивный замер: любой валидный pong обновляет последний sample.
func (c *Client) onPong(payload json.RawMessage) {
	pong, ok := decodePong(payload)
	if !ok {
		return
	}
	c.roundTrip(pong.ClientTime, pong.ServerTime)
}

// roundTrip считает RTT от clientTime (ms) до текущего момента и сохраняет sample.
func (c *Client) roundTrip(clientTime, serverTime int64) time.Duration {
	now := c.now()
	sent := time.UnixMilli(clientTime)
	rtt := now.Sub(sent)
	if rtt < 0 {
		rtt = 0
	}
	s := LatencySample{ClientSentAt: sent, RoundTrip: rtt}
	if serverTime > 0 {
		s.ServerRespondedAt = time.UnixMilli(serverTime)
	}
	c.health.record(s)
	return rtt
}

// pingLoop раз в PingInterval шлёт ping, пока соединение живо. Ошибки не фатальны.
func (c *Client) pingLoop(ctx context.Context) {
	defer close(c.loopDone)
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.IsConnected() {
				continue
			}
			ct := c.health.nextClientTime(c.now())
			if err := c.transport.Send(EventPing, PingRequest{ClientTime: ct, Timestamp: ct}); err != nil {
				c.log.Debug("passive ping failed", zap.Error(err))
				continue
			}
			wireRequests.WithLabelValues(EventPing, reasonPassive).Inc()
		}
	}
}
