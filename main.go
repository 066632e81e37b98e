// Wiki Resolver MCP Server - A Model Context Protocol server that resolves
// page titles on any MediaWiki site into canonical links and summaries
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/page"
	"github.com/olgasafonova/wiki-resolver-mcp-server/tools"
	"github.com/olgasafonova/wiki-resolver-mcp-server/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// recoverPanic logs a panic instead of crashing
func recoverPanic(logger *slog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered",
			"operation", operation,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

const (
	ServerName    = "wiki-resolver-mcp-server"
	ServerVersion = "1.0.0"
)

const instructions = `Wiki Resolver MCP Server resolves pages on any MediaWiki site.

Available tools:
- wiki_resolve_page: Resolve a title or page ID into canonical title, link, summary and image
- wiki_random_page: Resolve a random article
- wiki_site_info: Describe a wiki (API endpoint, extensions, interwiki prefixes)

Configure via environment variables:
- WIKI_RESOLVER_DEFAULT_WIKI: Wiki used when a call names none
- WIKI_RESOLVER_CACHE_PATH: SQLite file for the siteinfo cache (in-memory when unset)
- WIKI_RESOLVER_MODERATION: on/off
- WIKI_RESOLVER_HTTP_ADDR: Serve streamable HTTP instead of stdio
- WIKI_RESOLVER_METRICS_ADDR: Serve Prometheus metrics at /metrics`

func main() {
	// Configure logging to stderr (stdout is used for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := run(logger); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(logger *slog.Logger) error {
	defer recoverPanic(logger, "run")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := page.LoadConfig()
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	engine, err := page.Open(*config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("Engine close failed", "error", err)
		}
	}()

	server := newServer(engine, logger)

	if addr := os.Getenv("WIKI_RESOLVER_METRICS_ADDR"); addr != "" {
		metricsSrv := serveMetrics(addr, logger)
		defer shutdownHTTP(metricsSrv, logger)
	}

	logger.Info("Starting Wiki Resolver MCP Server",
		"name", ServerName,
		"version", ServerVersion,
		"default_wiki", config.DefaultWiki,
		"moderation", config.ModerationEnabled,
	)

	if addr := os.Getenv("WIKI_RESOLVER_HTTP_ADDR"); addr != "" {
		return serveHTTP(ctx, addr, server, logger)
	}
	return server.Run(ctx, &mcp.StdioTransport{})
}

// newServer builds the MCP server with every tool registered.
func newServer(engine *page.Engine, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Logger:       logger,
		Instructions: instructions,
	})
	tools.NewHandlerRegistry(engine, logger).RegisterAll(server)
	return server
}

// serveHTTP runs the streamable HTTP transport until ctx is done.
func serveHTTP(ctx context.Context, addr string, server *mcp.Server, logger *slog.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	guard := NewSecurityMiddleware(handler, logger, SecurityConfig{
		RateLimit:   120,
		MaxBodySize: 1 << 20,
	})
	defer guard.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           guard,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving MCP over HTTP", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownHTTP(srv, logger)
		return nil
	}
}

// serveMetrics exposes Prometheus metrics on addr in the background.
func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		defer recoverPanic(logger, "metrics")
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown failed", "addr", srv.Addr, "error", err)
	}
}
