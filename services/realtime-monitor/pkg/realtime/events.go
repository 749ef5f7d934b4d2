package realtime

// Имена событий на проводе. Должны совпадать с сервером байт в байт.
const (
	// lifecycle, эмитятся транспортом
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"

	EventConnectionEstablished = "connection:established"

	EventSubscribe           = "subscribe"
	EventUnsubscribe         = "unsubscribe"
	EventSubscriptionSuccess = "subscription:success"
	EventSubscriptionClosed  = "subscription:closed"

	EventPing = "ping"
	EventPong = "pong"

	EventMarketUpdate   = "market:update"
	EventAnalysisUpdate = "analysis:update"
	EventSystemMessage  = "system:message"
)
