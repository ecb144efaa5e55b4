package domain

import (
	"errors"
	"fmt"
)

// Management tool names
const (
	ToolNameReloadPrompts = "reload_prompts"
	ToolNameAddPrompt     = "add_prompt"
	ToolNameGenerateRule  = "get_prompt_generate_rule"
	ToolNamePromptNames   = "get_prompt_names"
	ToolNameSearchPrompts = "search_prompts"
)

const (
	defaultServerName    = "mcp-prompt-server"
	defaultServerVersion = "1.0.0"
	defaultInstructions  = "Each prompt template loaded by this server is available both as a tool and as a prompt. " +
		"Use get_prompt_names or search_prompts to discover templates, and add_prompt to contribute new ones."
)

// ManagementToolNames lists the reserved tool names, in registration order
var ManagementToolNames = []string{
	ToolNameReloadPrompts,
	ToolNameAddPrompt,
	ToolNameGenerateRule,
	ToolNamePromptNames,
	ToolNameSearchPrompts,
}

var defaultToolDescriptions = map[string]string{
	ToolNameReloadPrompts: "Hot reload all prompt templates from the prompts directory",
	ToolNameAddPrompt:     "Adds a new prompt to the server. Requires category, filename, and YAML content for the prompt. Reloads prompts on success.",
	ToolNameGenerateRule:  "Returns the content of the prompt generation rule, which defines the YAML structure for prompts.",
	ToolNamePromptNames:   "List all available prompt names as a JSON array",
	ToolNameSearchPrompts: "Search prompt templates by name, description and argument names",
}

// McpMetadata is the server identity plus optional tool description overrides
type McpMetadata struct {
	Server ServerMetadata `yaml:"server"`
	Tools  []ToolMetadata `yaml:"tools"`
}

// ServerMetadata describes the server to clients
type ServerMetadata struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions"`
}

// ToolMetadata overrides the description of a management tool
type ToolMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// DefaultMetadata returns the metadata used when no metadata file is configured
func DefaultMetadata() McpMetadata {
	return McpMetadata{
		Server: ServerMetadata{
			Name:         defaultServerName,
			Version:      defaultServerVersion,
			Instructions: defaultInstructions,
		},
	}
}

// Validate checks required fields and tool overrides
func (m McpMetadata) Validate() error {
	if m.Server.Name == "" {
		return errors.New("server name is required")
	}
	if m.Server.Version == "" {
		return errors.New("server version is required")
	}
	if m.Server.Instructions == "" {
		return errors.New("server instructions are required")
	}

	seen := make(map[string]bool, len(m.Tools))
	for i, t := range m.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool at index %d: name is required", i)
		}
		if t.Description == "" {
			return fmt.Errorf("tool %s: description is required", t.Name)
		}
		if _, ok := defaultToolDescriptions[t.Name]; !ok {
			return fmt.Errorf("tool %s: unknown tool", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("tool %s: duplicate entry", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// GetToolMetadata returns the metadata for a management tool, falling back to
// the built-in description
func (m McpMetadata) GetToolMetadata(name string) ToolMetadata {
	for _, t := range m.Tools {
		if t.Name == name {
			return t
		}
	}
	return ToolMetadata{Name: name, Description: defaultToolDescriptions[name]}
}

// IsManagementTool reports whether name is reserved for a management tool
func IsManagementTool(name string) bool {
	_, ok := defaultToolDescriptions[name]
	return ok
}
