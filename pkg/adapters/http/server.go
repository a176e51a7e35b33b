// Package http exposes a store over HTTP: state reads, action dispatch and a
// server-sent event stream of deltas.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/statekit"
	"github.com/aretw0/statekit/internal/logging"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/ports"
)

// MaxPayloadBytes bounds the size of an action payload.
const MaxPayloadBytes = 1 << 20

// Server serves one store.
type Server struct {
	Store   ports.ActionStore
	Streams *StreamManager

	logger      *slog.Logger
	metrics     http.Handler
	unsubscribe func()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger configures the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h under GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a server and subscribes its stream manager to the store.
// Close releases the subscription.
func NewServer(store ports.ActionStore, opts ...Option) *Server {
	s := &Server{
		Store:   store,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	s.unsubscribe = store.Subscribe(s.Streams.Broadcast)
	return s
}

// NewHandler creates a new HTTP handler for the store.
func NewHandler(store ports.ActionStore, opts ...Option) http.Handler {
	return NewServer(store, opts...).Handler()
}

// Close detaches the server from the store. Open event streams stay open but
// receive nothing further.
func (s *Server) Close() {
	s.unsubscribe()
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/state", s.GetState)
	r.Get("/actions", s.ListActions)
	r.Post("/actions/{name}", s.Dispatch)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActionInfo describes one registered action.
type ActionInfo struct {
	Name      string `json:"name"`
	Async     bool   `json:"async"`
	Available bool   `json:"available"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "statekit-http",
		"version": strings.TrimSpace(statekit.Version),
	})
}

// GetState handles the GET /state request.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	data, err := s.Store.Encode(r.Context())
	if err != nil {
		s.fail(w, "GetState", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// ListActions handles the GET /actions request. The optional "available" query
// parameter restricts which actions are reported as available.
func (s *Server) ListActions(w http.ResponseWriter, r *http.Request) {
	available := splitList(r.URL.Query().Get("available"))
	names := s.Store.Actions()
	infos := make([]ActionInfo, 0, len(names))
	for _, name := range names {
		l := s.Store.Lookup(name, available...)
		infos = append(infos, ActionInfo{Name: name, Async: l.Async, Available: l.OK()})
	}
	writeJSON(w, http.StatusOK, infos)
}

// Dispatch handles the POST /actions/{name} request. The body is the JSON payload;
// an empty body dispatches a nil payload. On success it responds with the new state.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	available := splitList(r.URL.Query().Get("available"))

	var payload any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err := dec.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Dispatch: Invalid request body", "action", name, "error", err)
		return
	}

	if err := s.Store.Dispatch(r.Context(), name, payload, available...); err != nil {
		s.fail(w, "Dispatch", fmt.Errorf("action %q: %w", name, err))
		return
	}
	s.GetState(w, r)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Warn(op+" rejected", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// StatusFor maps store errors to HTTP status codes.
func StatusFor(err error) int {
	var handlerErr *domain.HandlerError
	var asyncErr *domain.AsyncPhaseError
	var pathErr *domain.PathResolutionError
	switch {
	case errors.Is(err, domain.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnavailableAction):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.As(err, &handlerErr), errors.As(err, &asyncErr), errors.As(err, &pathErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrReentrantAction):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
