package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sha1n/mcp-prompt-server-go/internal/domain"
	"github.com/sha1n/mcp-prompt-server-go/internal/prompts"
)

// ErrorCodePromptRendering is reported in _meta.error when a prompt fails to render
const ErrorCodePromptRendering = "prompt_rendering_error"

// ToolFromDefinition builds the tool descriptor for a prompt definition
func ToolFromDefinition(def *prompts.Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}

	for _, arg := range def.Arguments {
		propOpts := []mcp.PropertyOption{mcp.Description(arg.Description)}
		if arg.Required {
			propOpts = append(propOpts, mcp.Required())
		}

		switch arg.Type {
		case prompts.ArgumentNumber:
			opts = append(opts, mcp.WithNumber(arg.Name, propOpts...))
		case prompts.ArgumentBoolean:
			opts = append(opts, mcp.WithBoolean(arg.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(arg.Name, propOpts...))
		}
	}

	return mcp.NewTool(def.Name, opts...)
}

// NewPromptToolHandler renders def with the call arguments and returns the
// text of the user messages joined by newlines. Declared arguments missing
// from the call render as empty strings.
func NewPromptToolHandler(def *prompts.Definition) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Prompt tool render failed", "name", def.Name, "panic", r)
				result = mcp.NewToolResultError(fmt.Sprintf("render_error: %v", r))
				err = nil
			}
		}()

		args := make(map[string]any, len(def.Arguments))
		for _, arg := range def.Arguments {
			args[arg.Name] = nil
		}
		for k, v := range req.GetArguments() {
			args[k] = v
		}

		rendered := prompts.Render(def.Messages, args)

		var texts []string
		for _, msg := range rendered {
			if msg.Role != prompts.RoleUser || !msg.Content.IsText() {
				continue
			}
			texts = append(texts, msg.Content.TextValue())
		}

		return mcp.NewToolResultText(strings.Join(texts, "\n")), nil
	}
}

// PromptFromDefinition builds the prompt descriptor for a prompt definition
func PromptFromDefinition(def *prompts.Definition) mcp.Prompt {
	opts := []mcp.PromptOption{mcp.WithPromptDescription(def.Description)}

	for _, arg := range def.Arguments {
		argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(arg.Description)}
		if arg.Required {
			argOpts = append(argOpts, mcp.RequiredArgument())
		}
		opts = append(opts, mcp.WithArgument(arg.Name, argOpts...))
	}

	return mcp.NewPrompt(def.Name, opts...)
}

// NewPromptHandler renders def for prompts/get. Rendering failures are
// reported in the result metadata instead of as a protocol error.
func NewPromptHandler(def *prompts.Definition) server.PromptHandlerFunc {
	return func(ctx context.Context, req mcp.GetPromptRequest) (result *mcp.GetPromptResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Prompt render failed", "name", def.Name, "panic", r)
				result = promptErrorResult(def, fmt.Sprint(r))
				err = nil
			}
		}()

		args := make(map[string]string, len(def.Arguments))
		for _, arg := range def.Arguments {
			args[arg.Name] = ""
		}
		for k, v := range req.Params.Arguments {
			args[k] = v
		}

		rendered := prompts.RenderStrings(def.Messages, args)

		messages := make([]mcp.PromptMessage, 0, len(rendered))
		for _, msg := range rendered {
			messages = append(messages, mcp.NewPromptMessage(toMCPRole(def.Name, msg.Role), toMCPContent(msg.Content)))
		}

		return mcp.NewGetPromptResult(def.Description, messages), nil
	}
}

func promptErrorResult(def *prompts.Definition, message string) *mcp.GetPromptResult {
	result := mcp.NewGetPromptResult(def.Description, []mcp.PromptMessage{})
	result.Meta = &mcp.Meta{
		AdditionalFields: map[string]any{
			"error": map[string]any{
				"code":    ErrorCodePromptRendering,
				"message": message,
			},
		},
	}
	return result
}

func toMCPRole(name string, role prompts.Role) mcp.Role {
	switch role {
	case prompts.RoleUser:
		return mcp.RoleUser
	case prompts.RoleAssistant:
		return mcp.RoleAssistant
	default:
		slog.Warn("Role has no MCP equivalent, sending as user", "name", name, "role", role)
		return mcp.RoleUser
	}
}

func toMCPContent(c *prompts.Content) mcp.Content {
	if c == nil {
		return mcp.NewTextContent("")
	}
	switch c.Kind {
	case prompts.KindImage:
		return mcp.NewImageContent(c.TextValue(), c.Type)
	default:
		return mcp.NewTextContent(c.TextValue())
	}
}

// CatalogBinder keeps the tools and prompts registered on an MCP server in
// line with the published catalog
type CatalogBinder struct {
	server *server.MCPServer
}

// NewCatalogBinder creates a binder for s
func NewCatalogBinder(s *server.MCPServer) *CatalogBinder {
	return &CatalogBinder{server: s}
}

// Publish removes descriptors that disappeared from the catalog and
// (re)registers every current definition
func (b *CatalogBinder) Publish(previous, current *prompts.Catalog) {
	var stale []string
	for _, name := range previous.Names() {
		if domain.IsManagementTool(name) {
			continue
		}
		if _, ok := current.Lookup(name); !ok {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		b.server.DeleteTools(stale...)
		b.server.DeletePrompts(stale...)
		slog.Info("Removed prompts", "names", stale)
	}

	registered := 0
	for _, def := range current.Definitions() {
		if domain.IsManagementTool(def.Name) {
			slog.Warn("Prompt name is reserved for a management tool, skipping", "name", def.Name, "path", def.SourcePath)
			continue
		}
		if b.bind(def) {
			registered++
		}
	}

	slog.Info("Bound prompts", "count", registered)
}

func (b *CatalogBinder) bind(def *prompts.Definition) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Failed to register prompt", "name", def.Name, "path", def.SourcePath, "panic", r)
			ok = false
		}
	}()

	b.server.AddTool(ToolFromDefinition(def), NewPromptToolHandler(def))
	b.server.AddPrompt(PromptFromDefinition(def), NewPromptHandler(def))
	slog.Debug("Registered prompt", "name", def.Name)
	return true
}
