package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sha1n/mcp-prompt-server-go/internal/domain"
	"github.com/sha1n/mcp-prompt-server-go/internal/resources"
	"github.com/sha1n/mcp-prompt-server-go/internal/search"
)

// CreateServer creates the MCP server with the management tools and the rule
// resource. Prompt tools and prompts are bound later by a CatalogBinder.
func CreateServer(
	metadata domain.McpMetadata,
	store PromptStore,
	ruleProvider *resources.RuleProvider,
	searchService search.Searcher,
) *server.MCPServer {
	s := server.NewMCPServer(
		metadata.Server.Name,
		metadata.Server.Version,
		server.WithInstructions(metadata.Server.Instructions),
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	)

	// Register Resources
	s.AddResource(ruleProvider.Resource(), ruleProvider.Handler())
	slog.Info("Registered resource", "uri", resources.RuleURI, "path", ruleProvider.Path())

	// Register Tools
	RegisterReloadPromptsTool(s, store, metadata.GetToolMetadata(domain.ToolNameReloadPrompts))
	RegisterAddPromptTool(s, store, metadata.GetToolMetadata(domain.ToolNameAddPrompt))
	RegisterGenerateRuleTool(s, ruleProvider, metadata.GetToolMetadata(domain.ToolNameGenerateRule))
	RegisterPromptNamesTool(s, store, metadata.GetToolMetadata(domain.ToolNamePromptNames))
	RegisterSearchPromptsTool(s, searchService, metadata.GetToolMetadata(domain.ToolNameSearchPrompts))

	for _, name := range domain.ManagementToolNames {
		slog.Info("Registered tool", "name", name)
	}

	return s
}
