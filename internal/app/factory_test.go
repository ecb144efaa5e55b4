package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sha1n/mcp-prompt-server-go/internal/config"
	"github.com/sha1n/mcp-prompt-server-go/internal/domain"
)

const greetYAML = `name: greet
description: Greets someone
arguments:
  - name: who
    required: true
messages:
  - role: user
    content:
      type: text
      text: "Hello, {{who}}!"
`

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	tempDir := t.TempDir()
	promptsDir := filepath.Join(tempDir, "prompts")
	_ = os.MkdirAll(promptsDir, 0755)
	_ = os.WriteFile(filepath.Join(promptsDir, "greet.yaml"), []byte(greetYAML), 0644)

	return &config.Settings{
		PromptsDir:    promptsDir,
		RuleFile:      filepath.Join(tempDir, "generate_rule.txt"),
		WatchDebounce: 50 * time.Millisecond,
		Search:        config.SearchSettings{MaxResults: 10},
	}
}

func listToolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()
	msg := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`))
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	names := make([]string, 0, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func TestCreateMCPServer_Success(t *testing.T) {
	settings := testSettings(t)

	s, cleanup, err := CreateMCPServer(settings)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer cleanup()

	if s == nil {
		t.Fatal("Server is nil")
	}

	names := listToolNames(t, s)
	if !contains(names, "greet") {
		t.Errorf("expected greet tool, got %v", names)
	}
	for _, name := range domain.ManagementToolNames {
		if !contains(names, name) {
			t.Errorf("expected management tool %s, got %v", name, names)
		}
	}
}

func TestCreateMCPServer_MissingPromptsDir(t *testing.T) {
	settings := testSettings(t)
	settings.PromptsDir = filepath.Join(t.TempDir(), "missing")

	_, _, err := CreateMCPServer(settings)
	if err == nil {
		t.Fatal("Expected error when prompts directory is missing")
	}
	if !strings.Contains(err.Error(), "failed to load initial prompts") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestCreateMCPServer_WithWatch(t *testing.T) {
	settings := testSettings(t)
	settings.Watch = true

	s, cleanup, err := CreateMCPServer(settings)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer cleanup()

	farewell := strings.ReplaceAll(greetYAML, "greet", "farewell")
	if err := os.WriteFile(filepath.Join(settings.PromptsDir, "farewell.yaml"), []byte(farewell), 0644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if contains(listToolNames(t, s), "farewell") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected farewell tool to be registered after the file was created")
}

func TestLoadMetadata(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		metadata, err := LoadMetadata("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if metadata.Server.Name != domain.DefaultMetadata().Server.Name {
			t.Errorf("expected default server name, got %s", metadata.Server.Name)
		}
	})

	t.Run("Override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.yaml")
		content := `
server:
  name: custom
tools:
  - name: reload_prompts
    description: Reload everything
`
		_ = os.WriteFile(path, []byte(content), 0644)

		metadata, err := LoadMetadata(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if metadata.Server.Name != "custom" {
			t.Errorf("expected custom server name, got %s", metadata.Server.Name)
		}
		if metadata.Server.Version != domain.DefaultMetadata().Server.Version {
			t.Errorf("expected default version to be kept, got %s", metadata.Server.Version)
		}
		if got := metadata.GetToolMetadata(domain.ToolNameReloadPrompts).Description; got != "Reload everything" {
			t.Errorf("expected override description, got %s", got)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil || !strings.Contains(err.Error(), "failed to read metadata file") {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.yaml")
		_ = os.WriteFile(path, []byte("not: valid: yaml: {{"), 0644)

		_, err := LoadMetadata(path)
		if err == nil || !strings.Contains(err.Error(), "failed to parse metadata") {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("Validation Fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.yaml")
		_ = os.WriteFile(path, []byte("tools:\n  - name: unknown_tool\n    description: x\n"), 0644)

		_, err := LoadMetadata(path)
		if err == nil || !strings.Contains(err.Error(), "metadata validation failed") {
			t.Errorf("Unexpected error: %v", err)
		}
	})
}
