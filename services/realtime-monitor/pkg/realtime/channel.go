// services/realtime-monitor/pkg/realtime/channel.go
package realtime

import (
	"fmt"
	"strings"
)

// SubscriptionType: первый сегмент имени канала.
type SubscriptionType string

const (
	TypeMarket   SubscriptionType = "market"
	TypeAnalysis SubscriptionType = "analysis"
)

// ChannelSystem: канал, в который попадают системные сообщения
// (от сервера и от самого клиента: обрывы, ошибки подключения).
const ChannelSystem = "system"

// FormatChannel строит имя канала "{type}:{symbol}:{timeframe}" или
// "{type}:{symbol}" при пустом timeframe. Одинаковые входы дают одинаковую строку.
// Пустые typ/symbol не проверяются: это ошибка вызывающего кода.
func FormatChannel(typ SubscriptionType, symbol, timeframe string) string {
	if timeframe == "" {
		return string(typ) + ":" + symbol
	}
	return string(typ) + ":" + symbol + ":" + timeframe
}

// ParseChannel разбирает имя канала обратно. Используется конфигом сервиса,
// поэтому, в отличие от FormatChannel, валидирует вход.
func ParseChannel(channel string) (typ SubscriptionType, symbol, timeframe string, err error) {
	if channel == ChannelSystem {
		return "", "", "", fmt.Errorf("realtime: %q is not a data channel", channel)
	}
	parts := strings.Split(channel, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", "", "", fmt.Errorf("realtime: invalid channel %q", channel)
	}
	typ = SubscriptionType(parts[0])
	switch typ {
	case TypeMarket, TypeAnalysis:
	default:
		return "", "", "", fmt.Errorf("realtime: unknown subscription type %q in %q", parts[0], channel)
	}
	symbol = parts[1]
	if symbol == "" {
		return "", "", "", fmt.Errorf("realtime: empty symbol in %q", channel)
	}
	if len(parts) == 3 {
		timeframe = parts[2]
		if timeframe == "" {
			return "", "", "", fmt.Errorf("realtime: empty timeframe in %q", channel)
		}
	}
	return typ, symbol, timeframe, nil
}
