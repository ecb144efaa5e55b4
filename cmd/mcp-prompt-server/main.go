package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sha1n/mcp-prompt-server-go/internal/app"
	"github.com/sha1n/mcp-prompt-server-go/internal/config"
	"github.com/sha1n/mcp-prompt-server-go/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cmd, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, error) {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "mcp-prompt-server",
		Short:         "Serves prompt templates from a directory over the Model Context Protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(v)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if err := logging.Setup(os.Stderr, settings.LogLevel, settings.LogFormat); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if err := run(cmd.Context(), settings); err != nil {
				slog.Error("Server exited with error", "error", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to a YAML config file")
	flags.Bool("stdio", false, "serve over stdin/stdout")
	flags.String("addr", "", fmt.Sprintf("SSE listen address (default %q when --stdio is not set)", config.DefaultAddr))
	flags.String("prompts-dir", "./prompts", "directory containing prompt templates")
	flags.String("rule-file", "./generate_rule.txt", "path to the prompt generation rule file")
	flags.String("metadata", "", "path to a YAML file overriding server metadata and tool descriptions")
	flags.String("cert-file", "", "TLS certificate file for the SSE transport")
	flags.String("key-file", "", "TLS key file for the SSE transport")
	flags.Bool("watch", false, "reload prompts when files in the prompts directory change")
	flags.Duration("watch-debounce", 500*time.Millisecond, "quiet period before a watched change triggers a reload")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Int("search-max-results", 10, "maximum number of search_prompts results")

	if err := bindFlags(v, cmd, map[string]string{
		"search.max-results": "search-max-results",
	}); err != nil {
		return nil, err
	}

	return cmd, nil
}

// bindFlags binds every flag to the viper key of the same name, or to the key
// given in aliases
func bindFlags(v *viper.Viper, cmd *cobra.Command, aliases map[string]string) error {
	keyFor := make(map[string]string, len(aliases))
	for key, flag := range aliases {
		if cmd.Flags().Lookup(flag) == nil {
			return fmt.Errorf("no flag %q for config key %q", flag, key)
		}
		keyFor[flag] = key
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key := f.Name
		if alias, ok := keyFor[f.Name]; ok {
			key = alias
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func run(ctx context.Context, settings *config.Settings) error {
	if settings.Stdio && settings.Addr != "" {
		slog.Warn("Both --stdio and --addr given, using SSE", "addr", settings.Addr)
	}

	mcpServer, cleanup, err := app.CreateMCPServer(settings)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	switch settings.Transport() {
	case config.TransportStdio:
		slog.Info("Starting MCP server", "transport", config.TransportStdio)
		g.Go(func() error {
			return ServeStdio(gctx, mcpServer, os.Stdin, os.Stdout)
		})
	default:
		sseServer, httpServer := NewSSEServer(mcpServer, settings)
		slog.Info("Starting MCP server", "transport", config.TransportSSE, "addr", httpServer.Addr, "tls", settings.UseTLS())
		g.Go(func() error {
			return StartSSEServer(httpServer, settings)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return sseServer.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	slog.Info("MCP server stopped")
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ServeStdio serves MCP over the given streams until ctx is done or stdin is
// closed
func ServeStdio(ctx context.Context, mcpServer *server.MCPServer, stdin io.Reader, stdout io.Writer) error {
	stdioServer := server.NewStdioServer(mcpServer)
	stdioServer.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))
	return stdioServer.Listen(ctx, stdin, stdout)
}
