package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/statekit/internal/logging"
	"github.com/aretw0/statekit/pkg/domain"
)

// StreamBuffer is the number of deltas buffered per client before drops.
const StreamBuffer = 16

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan domain.Delta][]string // channel -> watch filter
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan domain.Delta][]string),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a client. With a non-empty watch list, only deltas
// affecting one of the watched paths are delivered.
func (sm *StreamManager) Subscribe(watch []string) (<-chan domain.Delta, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.Delta, StreamBuffer)
	sm.subscribers[ch] = watch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Len returns the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast is a store subscriber. It never blocks: a client whose buffer is
// full misses the delta.
func (sm *StreamManager) Broadcast(ctx context.Context, delta domain.Delta) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch, watch := range sm.subscribers {
		if !wants(delta, watch) {
			continue
		}
		select {
		case ch <- delta:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping delta", "action", domain.ActionFromContext(ctx))
		}
	}
	return nil
}

func wants(delta domain.Delta, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, p := range watch {
		if delta.Affects(p) {
			return true
		}
	}
	return false
}

// SubscribeEvents handles the GET /events request (SSE). The optional "watch"
// query parameter is a comma separated list of paths.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	watch := splitList(r.URL.Query().Get("watch"))
	ch, cancel := s.Streams.Subscribe(watch)
	defer cancel()
	s.logger.Info("SSE: Client subscribed", "watch", watch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected")
			return
		case delta, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(delta)
			if err != nil {
				s.logger.Error("SSE: Failed to encode delta", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: delta\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
