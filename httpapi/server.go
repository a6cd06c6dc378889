package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finbot/ledger"
)

const serviceName = "finbot"

// Server exposes the liveness and status endpoints next to the bot.
type Server struct {
	ledger  *ledger.Ledger
	log     *slog.Logger
	started time.Time
	now     func() time.Time
}

// NewServer builds the health surface over the ledger.
func NewServer(l *ledger.Ledger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ledger:  l,
		log:     log.With("component", "httpapi"),
		started: time.Now(),
		now:     time.Now,
	}
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":  "not found",
			"status": http.StatusNotFound,
		})
	})
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "running",
		"service":   serviceName,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"message":   "finance bot is alive",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.ledger.Stats(ctx)
	if err != nil {
		s.log.Error("status check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "status unavailable",
			"status": http.StatusInternalServerError,
		})
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "running",
		"timestamp":  s.now().UTC().Format(time.RFC3339),
		"memory_mb":  float64(mem.Alloc) / (1 << 20),
		"goroutines": runtime.NumGoroutine(),
		"pid":        os.Getpid(),
		"tables":     stats,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
