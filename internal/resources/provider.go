package resources

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// RuleURI is the resource URI of the prompt generation rule
	RuleURI = "prompts://generate-rule"
	// RuleMIMEType is the MIME type the rule is served with
	RuleMIMEType = "text/plain"
)

// RuleProvider serves the prompt generation rule file
type RuleProvider struct {
	path string
}

// NewRuleProvider creates a provider for the rule file at path
func NewRuleProvider(path string) *RuleProvider {
	return &RuleProvider{path: path}
}

// Path returns the rule file location
func (p *RuleProvider) Path() string {
	return p.path
}

// ReadRule reads the rule file. The file is read on every call so edits are
// picked up without a reload.
func (p *RuleProvider) ReadRule() (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", fmt.Errorf("failed to read rule file %s: %w", p.path, err)
	}
	return string(data), nil
}

// Resource describes the rule as an MCP resource
func (p *RuleProvider) Resource() mcp.Resource {
	return mcp.NewResource(
		RuleURI,
		"generate-rule",
		mcp.WithResourceDescription("Rules describing the structure of a prompt template file"),
		mcp.WithMIMEType(RuleMIMEType),
	)
}

// Handler returns the resources/read handler for the rule
func (p *RuleProvider) Handler() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := p.ReadRule()
		if err != nil {
			slog.Error("Read resource failed", "uri", req.Params.URI, "error", err)
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      RuleURI,
				MIMEType: RuleMIMEType,
				Text:     text,
			},
		}, nil
	}
}
