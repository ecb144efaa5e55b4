package main

import (
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sha1n/mcp-prompt-server-go/internal/config"
)

const readHeaderTimeout = 10 * time.Second

// NewSSEServer wraps mcpServer in an SSE transport bound to the configured
// address. The returned SSE server owns the HTTP server for shutdown.
func NewSSEServer(mcpServer *server.MCPServer, settings *config.Settings) (*server.SSEServer, *http.Server) {
	httpServer := &http.Server{
		Addr:              settings.ListenAddr(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	sseServer := server.NewSSEServer(mcpServer, server.WithHTTPServer(httpServer))
	httpServer.Handler = sseServer
	return sseServer, httpServer
}

// StartSSEServer listens until the server is shut down, serving TLS when a
// certificate and key are configured
func StartSSEServer(httpServer *http.Server, settings *config.Settings) error {
	if settings.UseTLS() {
		return httpServer.ListenAndServeTLS(settings.CertFile, settings.KeyFile)
	}
	return httpServer.ListenAndServe()
}
