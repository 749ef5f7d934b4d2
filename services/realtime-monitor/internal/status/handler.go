// services/realtime-monitor/internal/status/handler.go
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
)

// Monitor: то, что HTTP-слой видит у realtime.Client.
type Monitor interface {
	Status() realtime.Status
	ClearSystemMessages()
	CheckHealth(ctx context.Context) (time.Duration, error)
}

// LatestReader отдаёт последний сохранённый апдейт канала (Redis).
type LatestReader interface {
	Latest(ctx context.Context, channel string) (realtime.Update, bool, error)
}

type Handler struct {
	monitor Monitor
	latest  LatestReader
	log     *logger.Logger
}

// New; latest может быть nil, тогда /status/latest/{channel} не регистрируется.
func New(m Monitor, latest LatestReader, log *logger.Logger) *Handler {
	return &Handler{monitor: m, latest: latest, log: log.Named("status")}
}

// Router: chi-роутер поддерева /status.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.NoCache)
	r.Route("/status", func(r chi.Router) {
		r.Get("/", h.getStatus)
		r.Delete("/messages", h.clearMessages)
		r.Get("/health", h.health)
		if h.latest != nil {
			r.Get("/latest/{channel}", h.getLatest)
		}
	})
	return r
}

// Routes монтирует Router в ServeMux httpserver.New.
func (h *Handler) Routes() map[string]http.Handler {
	r := h.Router()
	return map[string]http.Handler{"/status": r, "/status/": r}
}

type statusResponse struct {
	realtime.Status
	LatencyMS *float64 `json:"latency_ms,omitempty"`
}

func (h *Handler) getStatus(w http.ResponseWriter, _ *http.Request) {
	st := h.monitor.Status()
	resp := statusResponse{Status: st}
	if st.Latency != nil {
		ms := float64(st.Latency.RoundTrip) / float64(time.Millisecond)
		resp.LatencyMS = &ms
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) clearMessages(w http.ResponseWriter, _ *http.Request) {
	h.monitor.ClearSystemMessages()
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	OK        bool    `json:"ok"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	rtt, err := h.monitor.CheckHealth(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, healthResponse{OK: true, LatencyMS: float64(rtt) / float64(time.Millisecond)})
		return
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, realtime.ErrNotConnected):
		code = http.StatusServiceUnavailable
	case errors.Is(err, realtime.ErrHealthCheckTimeout):
		code = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// клиент ушёл, ответ уже никто не прочтёт
		return
	}
	h.log.WithContext(r.Context()).Warn("health check failed", zap.Error(err), zap.Int("code", code))
	writeJSON(w, code, healthResponse{Error: err.Error()})
}

func (h *Handler) getLatest(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if _, _, _, err := realtime.ParseChannel(channel); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	u, ok, err := h.latest.Latest(r.Context(), channel)
	if err != nil {
		h.log.WithContext(r.Context()).Error("latest lookup failed", zap.String("channel", channel), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
