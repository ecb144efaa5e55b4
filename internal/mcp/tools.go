package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sha1n/mcp-prompt-server-go/internal/domain"
	"github.com/sha1n/mcp-prompt-server-go/internal/prompts"
	"github.com/sha1n/mcp-prompt-server-go/internal/search"
)

// Error codes reported by the management tools
const (
	ErrorCodeReloadFailed     = "reload_failed"
	ErrorCodeMissingArguments = "missing_arguments"
	ErrorCodeInvalidPrompt    = "invalid_prompt"
	ErrorCodeWriteFailed      = "write_failed"
	ErrorCodeReloadAfterAdd   = "reload_failed_after_add"
	ErrorCodeCleanupFailed    = "cleanup_failed"
	ErrorCodeFileRead         = "file_read_error"
	ErrorCodeSearchFailed     = "search_failed"
)

// PromptStore is the registry surface used by the management tools
type PromptStore interface {
	LoadAndRegister(rootDir string) (*prompts.Catalog, error)
	AddDefinition(category, filename string, raw []byte) error
	ListNames() []string
	Root() string
	Len() int
}

// RuleReader reads the prompt generation rule
type RuleReader interface {
	ReadRule() (string, error)
}

// AddPromptToolArgument represents arguments for the add_prompt tool
type AddPromptToolArgument struct {
	Category    string `json:"category"`
	Filename    string `json:"filename"`
	YAMLContent string `json:"yaml_content"`
}

// toolError builds an error result carrying a machine readable code
func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultError(fmt.Sprintf("%s: %s", code, message))
	result.Meta = &mcp.Meta{
		AdditionalFields: map[string]any{
			"error": map[string]any{"code": code, "message": message},
		},
	}
	return result
}

// RegisterReloadPromptsTool registers the reload_prompts tool with the server
func RegisterReloadPromptsTool(s *server.MCPServer, store PromptStore, metadata domain.ToolMetadata) {
	tool := mcp.NewTool(
		metadata.Name,
		mcp.WithDescription(metadata.Description),
	)

	s.AddTool(tool, NewReloadPromptsToolHandler(store))
}

// NewReloadPromptsToolHandler creates the handler for the reload_prompts tool
func NewReloadPromptsToolHandler(store PromptStore) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		slog.Info("Reload prompts request")

		catalog, err := store.LoadAndRegister(store.Root())
		if err != nil {
			slog.Error("Reload prompts failed", "error", err)
			return toolError(ErrorCodeReloadFailed, err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Successfully reloaded %d prompts.", catalog.Len())), nil
	}
}

// RegisterAddPromptTool registers the add_prompt tool with the server
func RegisterAddPromptTool(s *server.MCPServer, store PromptStore, metadata domain.ToolMetadata) {
	tool := mcp.NewTool(
		metadata.Name,
		mcp.WithDescription(metadata.Description),
		mcp.WithString("category", mcp.Required(), mcp.Description("The category (subdirectory) for the new prompt.")),
		mcp.WithString("filename", mcp.Required(), mcp.Description("The filename for the new prompt (e.g., my_new_prompt.yaml).")),
		mcp.WithString("yaml_content", mcp.Required(), mcp.Description("The YAML content of the new prompt.")),
	)

	s.AddTool(tool, NewAddPromptToolHandler(store))
}

// NewAddPromptToolHandler creates the handler for the add_prompt tool
func NewAddPromptToolHandler(store PromptStore) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AddPromptToolArgument
		if err := req.BindArguments(&args); err != nil || args.Category == "" || args.Filename == "" || args.YAMLContent == "" {
			return toolError(ErrorCodeMissingArguments, "category, filename and yaml_content are required and cannot be empty"), nil
		}

		slog.Info("Add prompt request", "category", args.Category, "filename", args.Filename)

		if err := store.AddDefinition(args.Category, args.Filename, []byte(args.YAMLContent)); err != nil {
			slog.Error("Add prompt failed", "category", args.Category, "filename", args.Filename, "error", err)
			return toolError(addErrorCode(err), err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Prompt %s added to %s and all prompts reloaded. Total: %d",
			args.Filename, args.Category, store.Len())), nil
	}
}

func addErrorCode(err error) string {
	var addErr *prompts.AddError
	if !errors.As(err, &addErr) {
		return ErrorCodeInvalidPrompt
	}
	switch addErr.Stage {
	case prompts.StageWrite:
		return ErrorCodeWriteFailed
	case prompts.StageReload:
		return ErrorCodeReloadAfterAdd
	case prompts.StageCleanup:
		return ErrorCodeCleanupFailed
	default:
		return ErrorCodeInvalidPrompt
	}
}

// RegisterGenerateRuleTool registers the get_prompt_generate_rule tool with the server
func RegisterGenerateRuleTool(s *server.MCPServer, rules RuleReader, metadata domain.ToolMetadata) {
	tool := mcp.NewTool(
		metadata.Name,
		mcp.WithDescription(metadata.Description),
	)

	s.AddTool(tool, NewGenerateRuleToolHandler(rules))
}

// NewGenerateRuleToolHandler creates the handler for the get_prompt_generate_rule tool
func NewGenerateRuleToolHandler(rules RuleReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := rules.ReadRule()
		if err != nil {
			slog.Error("Read generate rule failed", "error", err)
			return toolError(ErrorCodeFileRead, err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// RegisterPromptNamesTool registers the get_prompt_names tool with the server
func RegisterPromptNamesTool(s *server.MCPServer, store PromptStore, metadata domain.ToolMetadata) {
	tool := mcp.NewTool(
		metadata.Name,
		mcp.WithDescription(metadata.Description),
	)

	s.AddTool(tool, NewPromptNamesToolHandler(store))
}

// NewPromptNamesToolHandler creates the handler for the get_prompt_names tool
func NewPromptNamesToolHandler(store PromptStore) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(store.ListNames())
		if err != nil {
			return nil, fmt.Errorf("failed to encode prompt names: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

// RegisterSearchPromptsTool registers the search_prompts tool with the server
func RegisterSearchPromptsTool(s *server.MCPServer, searcher search.Searcher, metadata domain.ToolMetadata) {
	tool := mcp.NewTool(
		metadata.Name,
		mcp.WithDescription(metadata.Description),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query. Use keywords from the prompt name or description.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	)

	s.AddTool(tool, NewSearchPromptsToolHandler(searcher))
}

// NewSearchPromptsToolHandler creates the handler for the search_prompts tool
func NewSearchPromptsToolHandler(searcher search.Searcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.TrimSpace(req.GetString("query", ""))
		if query == "" {
			return toolError(ErrorCodeMissingArguments, "query is required"), nil
		}

		slog.Info("Search request", "query", query)

		results, err := searcher.Search(query, &search.SearchOptions{Limit: req.GetInt("limit", 0)})
		if err != nil {
			slog.Error("Search failed", "query", query, "error", err)
			return toolError(ErrorCodeSearchFailed, err.Error()), nil
		}

		var sb strings.Builder
		if len(results) == 0 {
			fmt.Fprintf(&sb, "No prompts found for '%s'", query)
		} else {
			fmt.Fprintf(&sb, "Prompts matching '%s':\n\n", query)
			for _, r := range results {
				fmt.Fprintf(&sb, "- %s: %s\n", r.Name, r.Description)
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
