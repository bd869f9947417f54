package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/warden/pkg/domain"
)

// StreamManager fans driver lifecycle events out to SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- []byte]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[chan<- []byte]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a client. The returned func unregisters it and closes the channel.
func (sm *StreamManager) Subscribe() (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, 16)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Close disconnects every client, ending their streams.
func (sm *StreamManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers {
		delete(sm.subscribers, ch)
		close(ch)
	}
}

// Len reports the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast sends msg to every client. Slow clients lose the message.
func (sm *StreamManager) Broadcast(msg []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message")
		}
	}
}

// Hooks returns lifecycle hooks that broadcast every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnKickstart: func(_ context.Context, e *domain.ProcessEvent) { sm.publish(e, e.Err) },
		OnExit:      func(_ context.Context, e *domain.ProcessEvent) { sm.publish(e, e.Err) },
		OnResponse:  func(_ context.Context, e *domain.ResponseEvent) { sm.publish(e, e.Err) },
		OnSignal:    func(_ context.Context, e *domain.SignalEvent) { sm.publish(e, e.Err) },
		OnDropped:   func(_ context.Context, e *domain.SignalEvent) { sm.publish(e, e.Err) },
	}
}

type envelope struct {
	Event any    `json:"event"`
	Error string `json:"error,omitempty"`
}

func (sm *StreamManager) publish(event any, err error) {
	env := envelope{Event: event}
	if err != nil {
		env.Error = err.Error()
	}
	data, mErr := json.Marshal(env)
	if mErr != nil {
		sm.logger.Error("SSE: Failed to encode event", "error", mErr)
		return
	}
	sm.Broadcast(data)
}

// SubscribeEvents handles GET /events (SSE). The optional "driver" query
// parameter restricts the stream to a comma-separated list of driver names.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var filter map[string]bool
	if q := r.URL.Query().Get("driver"); q != "" {
		filter = make(map[string]bool)
		for _, name := range strings.Split(q, ",") {
			filter[strings.TrimSpace(name)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE client disconnected")
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if filter != nil && !filter[driverOf(msg)] {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func driverOf(msg []byte) string {
	var probe struct {
		Event struct {
			Driver string `json:"driver"`
		} `json:"event"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return ""
	}
	return probe.Event.Driver
}
