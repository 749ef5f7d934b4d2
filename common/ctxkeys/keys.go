// common/ctxkeys/keys.go
package ctxkeys

// Key: тип ключей контекста; строковое значение совпадает с именем поля в логах.
type Key string

const (
	TraceIDKey   Key = "trace_id"
	RequestIDKey Key = "request_id"
	// SessionIDKey: id WS-сессии realtime-клиента, новый на каждое подключение.
	SessionIDKey Key = "session_id"
)
