// Package mcp exposes a store to agents over the Model Context Protocol: every
// granted action becomes a tool and the state is a readable resource.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/statekit"
	"github.com/aretw0/statekit/internal/logging"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/ports"
)

const (
	// StateURI is the resource holding the encoded state.
	StateURI = "statekit://state"
	// GetStateTool is the built-in tool returning the encoded state.
	GetStateTool = "get_state"
)

// Server wraps a store and exposes it as an MCP Server.
type Server struct {
	store     ports.ActionStore
	available []string
	logger    *slog.Logger
	mcpServer *server.MCPServer

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

// WithAvailable restricts the exposed tools to the named actions, typically the
// tools granted to one agent.
func WithAvailable(names ...string) Option {
	return func(s *Server) {
		s.available = names
	}
}

// NewServer creates a new MCP Server instance. Tools are derived from the actions
// registered on the store at call time.
func NewServer(store ports.ActionStore, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("statekit-mcp", strings.TrimSpace(statekit.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(true, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	s.unsubscribe = store.Subscribe(s.notifyUpdated)
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Close detaches the server from the store.
func (s *Server) Close() {
	s.unsubscribe()
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the protocol over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		// Create a timeout context for the graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: get_state
	s.mcpServer.AddTool(mcp.NewTool(GetStateTool,
		mcp.WithDescription("Get the current state as JSON."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.stateResult(ctx)
	})

	for _, name := range s.store.Actions() {
		l := s.store.Lookup(name, s.available...)
		if !l.OK() {
			continue
		}
		if name == GetStateTool {
			s.logger.Warn("MCP: action shadowed by built-in tool, not exposed", "action", name)
			continue
		}
		description := fmt.Sprintf("Dispatch the %q action and return the resulting state.", name)
		if l.Async {
			description += " The action reads asynchronously before applying its result."
		}
		s.mcpServer.AddTool(mcp.NewTool(name,
			mcp.WithDescription(description),
			mcp.WithString("payload", mcp.Description("JSON payload of the action (optional)")),
		), s.dispatchHandler(name))
	}
}

func (s *Server) dispatchHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var payload any
		if raw := request.GetString("payload", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid payload: %v", err)), nil
			}
		}

		if err := s.store.Dispatch(ctx, name, payload, s.available...); err != nil {
			s.logger.Warn("MCP: action failed", "action", name, "error", err)
			return mcp.NewToolResultError(describe(name, err)), nil
		}
		return s.stateResult(ctx)
	}
}

// describe renders an action error for the calling agent.
func describe(name string, err error) string {
	var handlerErr *domain.HandlerError
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		return fmt.Sprintf("action %q rejected its payload: %v", name, err)
	case errors.As(err, &handlerErr):
		return fmt.Sprintf("action %q failed: %v", name, handlerErr.Err)
	default:
		return fmt.Sprintf("action %q: %v", name, err)
	}
}

func (s *Server) stateResult(ctx context.Context) (*mcp.CallToolResult, error) {
	data, err := s.store.Encode(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode state failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: statekit://state
	s.mcpServer.AddResource(mcp.NewResource(StateURI, "Current State",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.store.Encode(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to encode state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StateURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// notifyUpdated tells connected clients that the state resource changed.
func (s *Server) notifyUpdated(ctx context.Context, delta domain.Delta) error {
	s.mcpServer.SendNotificationToAllClients("notifications/resources/updated", map[string]any{
		"uri": StateURI,
	})
	return nil
}
