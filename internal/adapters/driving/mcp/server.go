package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/logger"
)

const (
	// DefaultShutdownTimeout bounds how long in-flight HTTP requests may
	// run after the serving context ends.
	DefaultShutdownTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// instructions is sent to MCP clients during initialisation.
const instructions = `Product catalog of an Italian hair-care shop.
Use search_products for brand, category or price questions; the query may be
in any language. Read vetrina://products/{productId} for a full product record.
Use chat to get a shop-assistant answer grounded on catalog products.`

// Options configures the server.
type Options struct {
	// Defaults fill search options the caller leaves unset.
	Defaults domain.SearchOptions

	// Metrics is served at /metrics over HTTP when set.
	Metrics http.Handler

	// Version is reported to clients. Empty means "dev".
	Version string

	// ShutdownTimeout overrides DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Server exposes catalog search and the shop assistant over MCP.
type Server struct {
	ports  *Ports
	opts   Options
	server *mcp.Server
}

// NewServer validates ports and registers tools and resources.
func NewServer(ports *Ports, opts Options) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if opts.Defaults.TopK <= 0 {
		opts.Defaults.TopK = domain.DefaultTopK
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		ports: ports,
		opts:  opts,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "vetrina", Version: opts.Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// healthStatus is the /healthz response body.
type healthStatus struct {
	Status   string `json:"status"`
	Products int    `json:"products"`
	Model    string `json:"model,omitempty"`
}

// Handler routes MCP at /mcp, the health check at /healthz and, when
// configured, metrics at /metrics. Everything is traced with otelhttp.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil))
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics)
	}
	return otelhttp.NewHandler(mux, "vetrina")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.ports.Search.Stats()
	body := healthStatus{Status: "ok", Products: stats.TotalProducts, Model: stats.ModelName}
	code := http.StatusOK
	if !stats.Loaded {
		body.Status = "catalog not loaded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// RunHTTP listens on addr and serves until ctx ends.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts HTTP connections on ln until ctx ends, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		stopped <- httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("MCP server listening on %s", ln.Addr())
	if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-stopped; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
