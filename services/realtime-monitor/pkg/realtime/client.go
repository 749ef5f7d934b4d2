// services/realtime-monitor/pkg/realtime/client.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

// ConnectionState: состояние соединения. Меняется только по событиям транспорта.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

const (
	defaultPingInterval  = 30 * time.Second
	defaultHealthTimeout = 5 * time.Second
	defaultSystemLogSize = 100
)

// Config: параметры клиента. Нулевые значения заменяются дефолтами.
type Config struct {
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
	SystemLogSize int           `mapstructure:"system_log_size"`
}

func (c *Config) applyDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = defaultHealthTimeout
	}
	if c.SystemLogSize <= 0 {
		c.SystemLogSize = defaultSystemLogSize
	}
}

// Client мультиплексирует подписки поверх одного Transport: хранит намерения,
// восстанавливает их после переподключения, раздаёт события и меряет задержку.
type Client struct {
	cfg        Config
	transport  Transport
	log        *logger.Logger
	registry   *Registry
	dispatcher *Dispatcher
	syslog     *SystemLog
	health     healthMonitor
	now        func() time.Time

	mu        sync.Mutex
	state     ConnectionState
	replayed  bool
	active    map[string]struct{}
	unsent    map[string]struct{} // subscribe этой сессии не ушёл на провод
	sessionID string
	ctx       context.Context
	cancel    context.CancelFunc
	offs      []func()
	started   bool
	closed    bool
	loopDone  chan struct{}
}

// New создаёт клиента. Соединение не открывается до Start.
func New(transport Transport, cfg Config, log *logger.Logger) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("realtime: transport is required")
	}
	cfg.applyDefaults()
	log = log.Named("realtime")

	registry := NewRegistry()
	syslog := NewSystemLog(cfg.SystemLogSize)
	return &Client{
		cfg:        cfg,
		transport:  transport,
		log:        log,
		registry:   registry,
		syslog:     syslog,
		dispatcher: NewDispatcher(registry, syslog, log),
		now:        time.Now,
		active:     make(map[string]struct{}),
		unsent:     make(map[string]struct{}),
		ctx:        context.Background(),
	}, nil
}

// Start вешает обработчики на транспорт, переводит клиента в Connecting,
// вызывает Transport.Connect и запускает пассивный ping.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.started:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.ctx, c.cancel = runCtx, cancel
	c.loopDone = make(chan struct{})

	// обработчики до Connect, иначе можно пропустить connect
	handlers := map[string]EventHandler{
		EventConnect:               c.onConnect,
		EventConnectionEstablished: c.onEstablished,
		EventDisconnect:            c.onDisconnect,
		EventConnectError:          c.onConnectError,
		EventSubscriptionSuccess:   c.onSubscriptionSuccess,
		EventSubscriptionClosed:    c.onSubscriptionClosed,
		EventPong:                  c.onPong,
		EventMarketUpdate:          c.dataHandler(EventMarketUpdate),
		EventAnalysisUpdate:        c.dataHandler(EventAnalysisUpdate),
		EventSystemMessage:         c.dataHandler(EventSystemMessage),
	}
	for event, h := range handlers {
		c.offs = append(c.offs, c.transport.On(event, h))
	}
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	go c.pingLoop(runCtx)

	if err := c.transport.Connect(runCtx); err != nil {
		c.mu.Lock()
		c.setStateLocked(Disconnected)
		c.mu.Unlock()
		c.recordSystem(LevelError, "connect failed: "+err.Error())
		return fmt.Errorf("realtime: connect: %w", err)
	}
	c.log.Info("client started", zap.Int("intended", c.registry.Len()))
	return nil
}

// Close снимает обработчики, останавливает ping и закрывает транспорт.
// Можно звать из колбэка подписки, если Transport.Disconnect не ждёт
// собственный цикл чтения (wstransport так и делает).
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, off := range c.offs {
		off()
	}
	c.offs = nil
	if c.cancel != nil {
		c.cancel()
	}
	done := c.loopDone
	c.setStateLocked(Disconnected)
	c.active = make(map[string]struct{})
	c.mu.Unlock()

	err := c.transport.Disconnect()
	if done != nil {
		<-done
	}
	c.log.Info("client closed")
	return err
}

// ---------------------------------------------------------------------------
// Public subscription API
// ---------------------------------------------------------------------------

// Subscribe регистрирует cb на канал (nil означает только намерение). Если канал
// новый и соединение живо, subscribe уходит сразу, иначе будет отправлен
// при следующем переподключении. Возвращает true, если канал слушается
// на текущем соединении.
func (c *Client) Subscribe(channel string, cb *Callback) bool {
	if channel == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	newly := c.registry.Subscribe(channel, cb)
	if c.state != Connected {
		return false
	}
	if !onWire(channel) {
		return true
	}
	_, retry := c.unsent[channel]
	if newly || retry {
		return c.subscribeLocked(channel, reasonImmediate) == nil
	}
	return true
}

// Unsubscribe снимает cb (nil снимает весь канал). Возвращает true, если на провод
// ушёл unsubscribe: канал освобождён и соединение живо.
func (c *Client) Unsubscribe(channel string, cb *Callback) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.registry.Unsubscribe(channel, cb) {
		return false
	}
	delete(c.active, channel)
	delete(c.unsent, channel)
	if c.state != Connected || c.closed || !onWire(channel) {
		return false
	}
	return c.sendChannelLocked(EventUnsubscribe, channel, reasonImmediate) == nil
}

// SubscribeToMarketUpdates подписывает fn на market:{symbol}:{timeframe}.
// Возвращённая функция отписывает; повторные вызовы ничего не делают.
func (c *Client) SubscribeToMarketUpdates(symbol, timeframe string, fn CallbackFunc) (unsubscribe func()) {
	return c.subscribeTyped(TypeMarket, symbol, timeframe, fn)
}

// SubscribeToAnalysisUpdates: то же для analysis:{symbol}:{timeframe}.
func (c *Client) SubscribeToAnalysisUpdates(symbol, timeframe string, fn CallbackFunc) (unsubscribe func()) {
	return c.subscribeTyped(TypeAnalysis, symbol, timeframe, fn)
}

func (c *Client) subscribeTyped(typ SubscriptionType, symbol, timeframe string, fn CallbackFunc) func() {
	channel := FormatChannel(typ, symbol, timeframe)
	var cb *Callback
	if fn != nil {
		cb = NewCallback(fn)
	}
	c.Subscribe(channel, cb)

	var once sync.Once
	return func() {
		once.Do(func() { c.Unsubscribe(channel, cb) })
	}
}

// ---------------------------------------------------------------------------
// Observables
// ---------------------------------------------------------------------------

func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsConnected() bool { return c.State() == Connected }

// SubscribedChannels: желаемые каналы (переживают обрыв).
func (c *Client) SubscribedChannels() []string { return c.registry.IntendedChannels() }

// ActiveChannels: каналы, подтверждённые сервером на текущем соединении.
func (c *Client) ActiveChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.active))
	for ch := range c.active {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func (c *Client) SystemMessages() []SystemMessage { return c.syslog.Messages() }

func (c *Client) ClearSystemMessages() { c.syslog.Clear() }

// Status: согласованный снимок для адаптеров (HTTP, UI).
type Status struct {
	State          ConnectionState `json:"state"`
	Connected      bool            `json:"connected"`
	SessionID      string          `json:"sessionId,omitempty"`
	Latency        *LatencySample  `json:"latency,omitempty"`
	Subscribed     []string        `json:"subscribed"`
	Active         []string        `json:"active"`
	SystemMessages []SystemMessage `json:"systemMessages"`
}

func (c *Client) Status() Status {
	c.mu.Lock()
	st := Status{
		State:     c.state,
		Connected: c.state == Connected,
		SessionID: c.sessionID,
	}
	st.Active = make([]string, 0, len(c.active))
	for ch := range c.active {
		st.Active = append(st.Active, ch)
	}
	c.mu.Unlock()

	sort.Strings(st.Active)
	if s, ok := c.LatencySample(); ok {
		st.Latency = &s
	}
	st.Subscribed = c.registry.IntendedChannels()
	st.SystemMessages = c.syslog.Messages()
	return st
}

// ---------------------------------------------------------------------------
// Transport event handlers
// ---------------------------------------------------------------------------

func (c *Client) onConnect(json.RawMessage) { c.markConnected(EventConnect) }

func (c *Client) onEstablished(json.RawMessage) { c.markConnected(EventConnectionEstablished) }

// markConnected: Connected + однократный replay намерений за сессию.
// Replay идёт под c.mu, поэтому параллельный Subscribe не продублирует канал.
func (c *Client) markConnected(trigger string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.replayed {
		if !c.closed {
			c.setStateLocked(Connected)
		}
		return
	}
	c.replayed = true
	c.sessionID = uuid.NewString()
	c.setStateLocked(Connected)

	channels := c.registry.IntendedChannels()
	for _, ch := range channels {
		if onWire(ch) {
			_ = c.subscribeLocked(ch, reasonReplay)
		}
	}
	c.log.Info("connected",
		zap.String("trigger", trigger),
		zap.String("session_id", c.sessionID),
		zap.Int("resubscribed", len(channels)),
	)
}

func (c *Client) onDisconnect(payload json.RawMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.resetSessionLocked()
	c.mu.Unlock()

	reason := "connection lost"
	var p struct {
		Reason string `json:"reason"`
	}
	if isObject(payload) && json.Unmarshal(payload, &p) == nil && p.Reason != "" {
		reason += ": " + p.Reason
	}
	c.log.Warn("disconnected", zap.String("reason", reason))
	c.recordSystem(LevelInfo, reason)
}

func (c *Client) onConnectError(payload json.RawMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.resetSessionLocked()
	c.mu.Unlock()

	reason := "connection error"
	var p struct {
		Error string `json:"error"`
	}
	if isObject(payload) && json.Unmarshal(payload, &p) == nil && p.Error != "" {
		reason += ": " + p.Error
	}
	c.log.Warn("connect error", zap.String("reason", reason))
	c.recordSystem(LevelError, reason)
}

func (c *Client) onSubscriptionSuccess(payload json.RawMessage) {
	ch, ok := decodeAck(payload)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// ack на уже отменённый канал игнорируем
	if c.state == Connected && c.registry.IsIntended(ch) {
		c.active[ch] = struct{}{}
	}
}

func (c *Client) onSubscriptionClosed(payload json.RawMessage) {
	ch, ok := decodeAck(payload)
	if !ok {
		return
	}
	c.mu.Lock()
	delete(c.active, ch)
	c.mu.Unlock()
}

func (c *Client) dataHandler(event string) EventHandler {
	return func(payload json.RawMessage) {
		c.mu.Lock()
		ctx, closed := c.sessionCtxLocked(), c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		c.dispatcher.Dispatch(ctx, Envelope{Event: event, Payload: payload, Timestamp: c.now()})
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// onWire: ChannelSystem локальный, сервер шлёт system:message без подписки.
func onWire(channel string) bool { return channel != ChannelSystem }

// resetSessionLocked: подтверждения сервера действуют только в пределах
// соединения и после обрыва должны быть получены заново.
func (c *Client) resetSessionLocked() {
	c.setStateLocked(Disconnected)
	c.replayed = false
	c.active = make(map[string]struct{})
	c.unsent = make(map[string]struct{})
}

// subscribeLocked шлёт subscribe и запоминает неудачу: повторный Subscribe
// того же канала в этой сессии попробует ещё раз.
func (c *Client) subscribeLocked(channel, reason string) error {
	if err := c.sendChannelLocked(EventSubscribe, channel, reason); err != nil {
		c.unsent[channel] = struct{}{}
		return err
	}
	delete(c.unsent, channel)
	return nil
}

func (c *Client) setStateLocked(s ConnectionState) {
	c.state = s
	connectionState.Set(float64(s))
}

func (c *Client) sendChannelLocked(event, channel, reason string) error {
	req := ChannelRequest{Channel: channel, Timestamp: c.now().UnixMilli()}
	if err := c.transport.Send(event, req); err != nil {
		c.log.Warn("send failed",
			zap.String("event", event),
			zap.String("channel", channel),
			zap.Error(err),
		)
		return err
	}
	wireRequests.WithLabelValues(event, reason).Inc()
	return nil
}

func (c *Client) recordSystem(level SystemLevel, text string) {
	c.mu.Lock()
	ctx := c.sessionCtxLocked()
	c.mu.Unlock()
	c.dispatcher.DispatchSystem(ctx, SystemMessage{Message: text, Level: level, Timestamp: c.now()})
}

func (c *Client) sessionCtxLocked() context.Context {
	if c.sessionID == "" {
		return c.ctx
	}
	return logger.ContextWithSessionID(c.ctx, c.sessionID)
}
