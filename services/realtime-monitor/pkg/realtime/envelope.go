// services/realtime-monitor/pkg/realtime/envelope.go
package realtime

import (
	"bytes"
	"encoding/json"
	"time"
)

// Envelope: входящее событие транспорта.
type Envelope struct {
	Event     string
	Payload   json.RawMessage
	Timestamp time.Time
}

// Update: то, что получают колбэки подписки.
type Update struct {
	Channel      string          `json:"channel"`
	Event        string          `json:"event"`
	Symbol       string          `json:"symbol,omitempty"`
	Timeframe    string          `json:"timeframe,omitempty"`
	AnalysisType string          `json:"analysisType,omitempty"`
	Data         json.RawMessage `json:"data"`
	ReceivedAt   time.Time       `json:"receivedAt"`
}

// MarketUpdate: полезная нагрузка market:update и analysis:update.
type MarketUpdate struct {
	Symbol       string          `json:"symbol"`
	Timeframe    string          `json:"timeframe"`
	AnalysisType string          `json:"analysisType,omitempty"`
	Data         json.RawMessage `json:"data"`
}

// SystemLevel: уровень системного сообщения.
type SystemLevel string

const (
	LevelInfo    SystemLevel = "info"
	LevelWarning SystemLevel = "warning"
	LevelError   SystemLevel = "error"
)

// SystemMessage: system:message от сервера либо событие клиента.
type SystemMessage struct {
	Message   string      `json:"message"`
	Level     SystemLevel `json:"level"`
	Timestamp time.Time   `json:"timestamp"`
}

// Pong: ответ сервера на ping; clientTime возвращается как есть.
type Pong struct {
	ClientTime int64 `json:"clientTime"`
	ServerTime int64 `json:"serverTime"`
}

// ChannelRequest: тело subscribe/unsubscribe.
type ChannelRequest struct {
	Channel   string `json:"channel"`
	Timestamp int64  `json:"timestamp"`
}

// PingRequest: тело ping. Время в миллисекундах Unix.
type PingRequest struct {
	ClientTime int64 `json:"clientTime"`
	Timestamp  int64 `json:"timestamp"`
}

// SubscriptionAck: тело subscription:success / subscription:closed.
type SubscriptionAck struct {
	Channel string `json:"channel"`
}

// ---------------------------------------------------------------------------
// Structural guards. Никогда не паникуют, на мусоре возвращают false.
// ---------------------------------------------------------------------------

type updateProbe struct {
	Symbol       json.RawMessage `json:"symbol"`
	Timeframe    json.RawMessage `json:"timeframe"`
	Data         json.RawMessage `json:"data"`
	AnalysisType json.RawMessage `json:"analysisType"`
}

// IsMarketUpdate: объект со строками symbol (непустой), timeframe и non-null data.
func IsMarketUpdate(payload json.RawMessage) bool {
	_, ok := DecodeMarketUpdate(payload)
	return ok
}

// IsAnalysisUpdate: как IsMarketUpdate; analysisType, если есть, должен быть строкой.
func IsAnalysisUpdate(payload json.RawMessage) bool {
	_, ok := DecodeAnalysisUpdate(payload)
	return ok
}

// IsSystemMessage: строка message и level из {info, warning, error}.
func IsSystemMessage(payload json.RawMessage) bool {
	_, ok := DecodeSystemMessage(payload)
	return ok
}

// DecodeMarketUpdate возвращает типизированный апдейт и ok=false на невалидном payload.
func DecodeMarketUpdate(payload json.RawMessage) (MarketUpdate, bool) {
	return decodeUpdate(payload, false)
}

// DecodeAnalysisUpdate: то же для analysis:update.
func DecodeAnalysisUpdate(payload json.RawMessage) (MarketUpdate, bool) {
	return decodeUpdate(payload, true)
}

func decodeUpdate(payload json.RawMessage, analysis bool) (MarketUpdate, bool) {
	var p updateProbe
	if !isObject(payload) || json.Unmarshal(payload, &p) != nil {
		return MarketUpdate{}, false
	}
	symbol, ok := rawString(p.Symbol)
	if !ok || symbol == "" {
		return MarketUpdate{}, false
	}
	timeframe, ok := rawString(p.Timeframe)
	if !ok {
		return MarketUpdate{}, false
	}
	if !present(p.Data) {
		return MarketUpdate{}, false
	}
	u := MarketUpdate{Symbol: symbol, Timeframe: timeframe, Data: p.Data}
	if analysis && present(p.AnalysisType) {
		at, ok := rawString(p.AnalysisType)
		if !ok {
			return MarketUpdate{}, false
		}
		u.AnalysisType = at
	}
	return u, true
}

// DecodeSystemMessage возвращает сообщение; Timestamp не заполняется.
func DecodeSystemMessage(payload json.RawMessage) (SystemMessage, bool) {
	var p struct {
		Message json.RawMessage `json:"message"`
		Level   json.RawMessage `json:"level"`
	}
	if !isObject(payload) || json.Unmarshal(payload, &p) != nil {
		return SystemMessage{}, false
	}
	msg, ok := rawString(p.Message)
	if !ok {
		return SystemMessage{}, false
	}
	lvl, ok := rawString(p.Level)
	if !ok {
		return SystemMessage{}, false
	}
	switch SystemLevel(lvl) {
	case LevelInfo, LevelWarning, LevelError:
	default:
		return SystemMessage{}, false
	}
	return SystemMessage{Message: msg, Level: SystemLevel(lvl)}, true
}

// decodePong требует числовой clientTime; serverTime необязателен.
func decodePong(payload json.RawMessage) (Pong, bool) {
	var p struct {
		ClientTime *float64 `json:"clientTime"`
		ServerTime *float64 `json:"serverTime"`
	}
	if !isObject(payload) || json.Unmarshal(payload, &p) != nil || p.ClientTime == nil {
		return Pong{}, false
	}
	pong := Pong{ClientTime: int64(*p.ClientTime)}
	if p.ServerTime != nil {
		pong.ServerTime = int64(*p.ServerTime)
	}
	return pong, true
}

func decodeAck(payload json.RawMessage) (string, bool) {
	var ack SubscriptionAck
	if !isObject(payload) || json.Unmarshal(payload, &ack) != nil || ack.Channel == "" {
		return "", false
	}
	return ack.Channel, true
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func rawString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
