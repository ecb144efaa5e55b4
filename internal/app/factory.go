package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sha1n/mcp-prompt-server-go/internal/config"
	"github.com/sha1n/mcp-prompt-server-go/internal/domain"
	"github.com/sha1n/mcp-prompt-server-go/internal/mcp"
	"github.com/sha1n/mcp-prompt-server-go/internal/prompts"
	"github.com/sha1n/mcp-prompt-server-go/internal/resources"
	"github.com/sha1n/mcp-prompt-server-go/internal/search"
	"github.com/sha1n/mcp-prompt-server-go/internal/watcher"
	"gopkg.in/yaml.v3"
)

// CreateMCPServer initializes the core MCP server components
func CreateMCPServer(settings *config.Settings) (*server.MCPServer, func(), error) {
	metadata, err := LoadMetadata(settings.MetadataPath)
	if err != nil {
		return nil, nil, err
	}

	ruleProvider := resources.NewRuleProvider(settings.RuleFile)

	// Initialize search service
	searchService := search.NewService(settings.Search)

	registry := prompts.NewRegistry(prompts.WithPublisher(searchService))

	mcpServer := mcp.CreateServer(metadata, registry, ruleProvider, searchService)
	registry.AddPublisher(mcp.NewCatalogBinder(mcpServer))

	if _, err := registry.LoadAndRegister(settings.PromptsDir); err != nil {
		searchService.Close()
		return nil, nil, fmt.Errorf("failed to load initial prompts: %w", err)
	}

	var promptWatcher *watcher.Watcher
	if settings.Watch {
		promptWatcher, err = watcher.New(settings.PromptsDir, registry, settings.WatchDebounce)
		if err != nil {
			searchService.Close()
			return nil, nil, err
		}
		if err := promptWatcher.Start(context.Background()); err != nil {
			promptWatcher.Stop()
			searchService.Close()
			return nil, nil, fmt.Errorf("failed to start prompt watcher: %w", err)
		}
	}

	cleanup := func() {
		if promptWatcher != nil {
			promptWatcher.Stop()
		}
		searchService.Close()
	}

	return mcpServer, cleanup, nil
}

// LoadMetadata reads the metadata file at path over the built-in defaults.
// An empty path returns the defaults.
func LoadMetadata(path string) (domain.McpMetadata, error) {
	metadata := domain.DefaultMetadata()
	if path == "" {
		return metadata, nil
	}

	mdBytes, err := os.ReadFile(path)
	if err != nil {
		return domain.McpMetadata{}, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := yaml.Unmarshal(mdBytes, &metadata); err != nil {
		return domain.McpMetadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if err := metadata.Validate(); err != nil {
		return domain.McpMetadata{}, fmt.Errorf("metadata validation failed: %w", err)
	}

	slog.Info("Loaded metadata", "path", path, "server", metadata.Server.Name)
	return metadata, nil
}
