package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/registry"
	"github.com/go-chi/chi/v5"
)

const apiVersion = "1"

// Server serves the control API over a registry of drivers.
type Server struct {
	Registry  *registry.Registry
	Publisher ports.Publisher
	Metrics   http.Handler
	Streams   *StreamManager
	Logger    *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithStreams enables GET /events, fed by sm.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = l
	}
}

// NewHandler creates the HTTP control API. Signals posted to /signal go to pub.
func NewHandler(reg *registry.Registry, pub ports.Publisher, opts ...Option) http.Handler {
	s := &Server{
		Registry:  reg,
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/signal", s.PostSignal)
	r.Get("/drivers", s.ListDrivers)
	r.Get("/drivers/{name}", s.GetDriver)
	r.Post("/drivers/{name}/kickstart", s.KickstartDriver)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	if s.Streams != nil {
		r.Get("/events", s.SubscribeEvents)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":         "warden",
		"version":     strings.TrimSpace(warden.Version),
		"api_version": apiVersion,
		"drivers":     len(s.Registry.List()),
	})
}

// PostSignal handles POST /signal. The body is a JSON domain.Signal.
func (s *Server) PostSignal(w http.ResponseWriter, r *http.Request) {
	var sig domain.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("Invalid signal body", "error", err)
		return
	}
	if sig.ComponentID == "" || sig.Data == "" {
		http.Error(w, "component_id and data are required", http.StatusBadRequest)
		return
	}
	if sig.Sender == "" {
		sig.Sender = "http"
	}
	data, err := domain.SanitizeData(sig.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.Logger.Warn("Signal rejected", "component", sig.ComponentID, "error", err, "size", len(sig.Data))
		return
	}
	sig.Data = data

	if err := s.Publisher.Publish(r.Context(), sig); err != nil {
		http.Error(w, fmt.Sprintf("Publish failed: %v", err), http.StatusServiceUnavailable)
		s.Logger.Error("Failed to publish signal", "component", sig.ComponentID, "error", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListDrivers handles GET /drivers.
func (s *Server) ListDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Statuses())
}

// GetDriver handles GET /drivers/{name}.
func (s *Server) GetDriver(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	d, ok := s.Registry.Get(name)
	if !ok {
		http.Error(w, "Driver not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d.Status())
}

// KickstartDriver handles POST /drivers/{name}/kickstart.
func (s *Server) KickstartDriver(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.Registry.Kickstart(r.Context(), name)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		http.Error(w, "Driver not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrDriverClosed):
		http.Error(w, "Driver is closed", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("Kickstart failed: %v", err), http.StatusInternalServerError)
		s.Logger.Error("Kickstart failed", "driver", name, "error", err)
		return
	}

	d, _ := s.Registry.Get(name)
	writeJSON(w, http.StatusOK, d.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
