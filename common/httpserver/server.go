// common/httpserver/server.go
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/common/middleware"
	promutil "github.com/YaganovValera/crypto-realtime/common/prometheus"
)

// ReadyChecker: nil: сервис готов принимать трафик.
type ReadyChecker func() error

type Middleware = middleware.Func

type HTTPServer interface {
	Start(ctx context.Context) error
	Handler() http.Handler
}

type server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             *logger.Logger
}

// New собирает ServeMux: /metrics, /healthz, /readyz плюс routes
// (ключи: шаблоны ServeMux, в т.ч. "GET /status"). mws применяются
// ко всем маршрутам, первый самый внешний.
func New(cfg Config, check ReadyChecker, log *logger.Logger, routes map[string]http.Handler, mws ...Middleware) (HTTPServer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promutil.Handler())
	mux.HandleFunc(cfg.HealthzPath, liveness)
	mux.Handle(cfg.ReadyzPath, readiness(check))
	for pattern, h := range routes {
		mux.Handle(pattern, h)
	}

	return &server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      middleware.Compose(mws...)(mux),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             log.Named("http-server"),
	}, nil
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("OK"))
}

func readiness(check ReadyChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				http.Error(w, "NOT READY: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("READY"))
	}
}

func (s *server) Handler() http.Handler { return s.srv.Handler }

// Start слушает до отмены ctx, затем делает Shutdown с shutdownTimeout.
// Ошибка bind возвращается сразу, без ожидания ctx.
func (s *server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.srv.Addr, err)
	}
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("httpserver: serve: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		s.log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	s.log.Info("stopped")
	return nil
}
