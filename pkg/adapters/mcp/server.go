package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const driversURI = "warden://drivers"

// Server exposes a registry of drivers as an MCP server.
type Server struct {
	registry  *registry.Registry
	publisher ports.Publisher
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(reg *registry.Registry, pub ports.Publisher, opts ...Option) *Server {
	s := &Server{
		registry:  reg,
		publisher: pub,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		mcpServer: server.NewMCPServer("warden-mcp", strings.TrimSpace(warden.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

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

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("send_signal",
		mcp.WithDescription("Publish a named event addressed to a supervised component. Data uses the COMMAND|params form."),
		mcp.WithString("component", mcp.Required(), mcp.Description("Driver name the signal is addressed to")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Command payload, e.g. JUMP|5")),
		mcp.WithString("sender", mcp.Description("Sender identity recorded on the signal (optional)")),
	), s.handleSendSignal)

	s.mcpServer.AddTool(mcp.NewTool("list_drivers",
		mcp.WithDescription("List every supervised component with its state, worker instance and restart count."),
	), s.handleListDrivers)

	s.mcpServer.AddTool(mcp.NewTool("kickstart_driver",
		mcp.WithDescription("Restart the worker process of a supervised component."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Driver name")),
	), s.handleKickstart)
}

func (s *Server) handleSendSignal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	component, err := request.RequireString("component")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := request.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(data) == "" {
		return mcp.NewToolResultError("data must not be empty"), nil
	}
	data, err = domain.SanitizeData(data)
	if err != nil {
		s.logger.Warn("MCP: signal rejected", "component", component, "error", err, "size", len(data))
		return mcp.NewToolResultError(fmt.Sprintf("signal rejected: %v", err)), nil
	}

	sig := domain.Signal{
		Sender:      request.GetString("sender", "mcp"),
		ComponentID: component,
		Data:        data,
	}
	if err := s.publisher.Publish(ctx, sig); err != nil {
		s.logger.Error("MCP: publish failed", "component", component, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("publish failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("signal %q sent to %s", data, component)), nil
}

func (s *Server) handleListDrivers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(s.registry.Statuses())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleKickstart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.registry.Kickstart(ctx, name); err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			s.logger.Error("MCP: kickstart failed", "driver", name, "error", err)
		}
		return mcp.NewToolResultError(fmt.Sprintf("kickstart failed: %v", err)), nil
	}

	d, _ := s.registry.Get(name)
	jsonBytes, _ := json.Marshal(d.Status())
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(driversURI, "Supervised Drivers",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.registry.Statuses())
		if err != nil {
			return nil, fmt.Errorf("failed to encode drivers: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      driversURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
