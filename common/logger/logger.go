// common/logger/logger.go
//
// Пакет logger: обёртка над zap с общим уровнем для всех под-логгеров
// и полями корреляции из контекста (request_id, session_id, trace_id).
package logger

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/YaganovValera/crypto-realtime/common/ctxkeys"
)

// Config; Level: debug|info|warn|error (пусто → info).
// DevMode включает консольный вывод и stacktrace на warn.
type Config struct {
	Level   string `mapstructure:"level"`
	DevMode bool   `mapstructure:"dev_mode"`
	// Sampling ограничивает поток одинаковых сообщений в prod (дефолт: выключено).
	Sampling bool `mapstructure:"sampling"`
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("logger: invalid level %q: %w", s, err)
	}
	return lvl, nil
}

// Logger: *zap.Logger плюс общий AtomicLevel.
type Logger struct {
	raw   *zap.Logger
	level zap.AtomicLevel
}

func New(cfg Config) (*Logger, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(lvl)

	zl, err := buildZapConfig(cfg, atom).Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logger: build zap: %w", err)
	}
	return &Logger{raw: zl, level: atom}, nil
}

// NewNop: логгер для тестов, ничего не пишет.
func NewNop() *Logger {
	return &Logger{raw: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// FromZap оборачивает готовый *zap.Logger (zaptest/observer и т.п.).
// SetLevel на таком логгере не влияет на уже собранное ядро.
func FromZap(zl *zap.Logger) *Logger {
	return &Logger{raw: zl, level: zap.NewAtomicLevel()}
}

func (l *Logger) derive(zl *zap.Logger) *Logger { return &Logger{raw: zl, level: l.level} }

func (l *Logger) Sync() { _ = l.raw.Sync() }

// Named: под-логгер компонента: "realtime-client", "ws-transport" …
func (l *Logger) Named(name string) *Logger { return l.derive(l.raw.Named(name)) }

func (l *Logger) With(fields ...zap.Field) *Logger { return l.derive(l.raw.With(fields...)) }

// SetLevel меняет уровень для этого логгера и всех производных от него.
func (l *Logger) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

func (l *Logger) Level() zapcore.Level { return l.level.Level() }

// LevelHandler: GET отдаёт {"level":"info"}, PUT с тем же телом меняет
// уровень на лету для всех производных логгеров.
func (l *Logger) LevelHandler() http.Handler { return l.level }

// WithContext добавляет request_id/session_id из контекста и trace_id:
// явно положенный через ContextWithTraceID либо из активного otel-span.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var fields []zap.Field
	for _, key := range []ctxkeys.Key{ctxkeys.RequestIDKey, ctxkeys.SessionIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}

	traceID, _ := ctx.Value(ctxkeys.TraceIDKey).(string)
	if sc := trace.SpanContextFromContext(ctx); traceID == "" && sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	if traceID != "" {
		fields = append(fields, zap.String(string(ctxkeys.TraceIDKey), traceID))
	}

	if len(fields) == 0 {
		return l
	}
	return l.derive(l.raw.With(fields...))
}

func (l *Logger) Sugar() *zap.SugaredLogger { return l.raw.Sugar() }

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.raw.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.raw.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.raw.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.raw.Error(msg, fields...) }

func ContextWithTraceID(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, ctxkeys.TraceIDKey, tid)
}

func ContextWithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxkeys.RequestIDKey, rid)
}

// ContextWithSessionID помечает контекст идентификатором WS-сессии клиента.
func ContextWithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxkeys.SessionIDKey, sid)
}

// RequestIDFromContext: "" если нет.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxkeys.RequestIDKey).(string)
	return v
}
