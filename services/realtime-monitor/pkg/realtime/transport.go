package realtime

import (
	"context"
	"encoding/json"
)

// EventHandler получает сырой JSON payload именованного события.
type EventHandler func(payload json.RawMessage)

// Transport: абстрактный двунаправленный транспорт именованных событий.
//
// Реализация обязана:
//   - эмитить lifecycle-события EventConnect / EventDisconnect / EventConnectError;
//   - вызывать обработчики последовательно, в порядке прихода событий;
//   - позволять вызывать Send из обработчиков и из других goroutine.
//
// Переподключение: ответственность транспорта.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(event string, payload any) error
	// On регистрирует обработчик; возвращённая off() снимает именно его.
	On(event string, h EventHandler) (off func())
}
