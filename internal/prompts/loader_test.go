package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetYAML = `name: greet
description: Greets someone
arguments:
  - name: who
    description: Who to greet
    required: true
messages:
  - role: user
    content:
      type: text
      text: "Hello, {{who}}!"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestParseDefinition_YAML(t *testing.T) {
	def, err := ParseDefinition("greet.yaml", []byte(greetYAML))
	require.NoError(t, err)

	assert.Equal(t, "greet", def.Name)
	assert.Equal(t, "Greets someone", def.Description)
	require.Len(t, def.Arguments, 1)
	assert.Equal(t, Argument{Name: "who", Description: "Who to greet", Type: ArgumentString, Required: true}, def.Arguments[0])
	require.Len(t, def.Messages, 1)
	assert.Equal(t, RoleUser, def.Messages[0].Role)
	require.NotNil(t, def.Messages[0].Content)
	assert.Equal(t, KindText, def.Messages[0].Content.Kind)
	assert.Equal(t, "Hello, {{who}}!", def.Messages[0].Content.TextValue())
}

func TestParseDefinition_JSON(t *testing.T) {
	raw := `{
  "name": "count",
  "arguments": [{"name": "n", "type": "number"}, {"name": "loud", "type": "Boolean"}, {"name": "x", "type": "date"}],
  "messages": [
    {"role": "Assistant", "content": {"type": "text", "text": "n={{n}}"}},
    {"role": "system", "content": {"type": "image/png", "text": "aGVsbG8="}}
  ]
}`
	def, err := ParseDefinition("count.JSON", []byte(raw))
	require.NoError(t, err)

	require.Len(t, def.Arguments, 3)
	assert.Equal(t, ArgumentNumber, def.Arguments[0].Type)
	assert.Equal(t, ArgumentBoolean, def.Arguments[1].Type)
	assert.Equal(t, ArgumentString, def.Arguments[2].Type)

	require.Len(t, def.Messages, 2)
	assert.Equal(t, RoleAssistant, def.Messages[0].Role)
	assert.Equal(t, RoleSystem, def.Messages[1].Role)
	assert.Equal(t, KindImage, def.Messages[1].Content.Kind)
	assert.Equal(t, "image/png", def.Messages[1].Content.Type)
}

func TestParseDefinition_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		target   error
	}{
		{name: "missing name", filename: "a.yaml", content: "description: no name\n", target: ErrMissingName},
		{name: "blank name", filename: "a.json", content: `{"name": "  "}`, target: ErrMissingName},
		{name: "unsupported extension", filename: "a.txt", content: "name: a", target: ErrUnsupportedExtension},
		{name: "invalid yaml", filename: "a.yml", content: "name: [unclosed", target: nil},
		{name: "invalid json", filename: "a.json", content: "{", target: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition(tt.filename, []byte(tt.content))
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestParseDefinition_UnknownRoleDefaultsToUser(t *testing.T) {
	raw := "name: r\nmessages:\n  - role: narrator\n    content:\n      type: text\n      text: hi\n"
	def, err := ParseDefinition("r.yaml", []byte(raw))
	require.NoError(t, err)
	require.Len(t, def.Messages, 1)
	assert.Equal(t, RoleUser, def.Messages[0].Role)
}

func TestParseDefinition_MessageWithoutContent(t *testing.T) {
	raw := "name: r\nmessages:\n  - role: user\n"
	def, err := ParseDefinition("r.yaml", []byte(raw))
	require.NoError(t, err)
	require.Len(t, def.Messages, 1)
	assert.Nil(t, def.Messages[0].Content)
}

func TestLoadAll_SkipsInvalidFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "general", "greet.yaml"), greetYAML)
	writeFile(t, filepath.Join(root, "general", "broken.yaml"), "name: [unclosed")
	writeFile(t, filepath.Join(root, "general", "noname.json"), `{"description": "x"}`)
	writeFile(t, filepath.Join(root, "README.md"), "# not a prompt")

	defs, err := LoadAll(root)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "greet", defs[0].Name)
	assert.Equal(t, filepath.Join(root, "general", "greet.yaml"), defs[0].SourcePath)
}

func TestLoadAll_RecursesIntoSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.yaml"), "name: a\n")
	writeFile(t, filepath.Join(root, "x", "b.yml"), "name: b\n")
	writeFile(t, filepath.Join(root, "x", "y", "z", "c.json"), `{"name": "c"}`)

	defs, err := LoadAll(root)
	require.NoError(t, err)

	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, names)
}

func TestLoadAll_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "dup.yaml"), "name: dup\ndescription: from b\n")
	writeFile(t, filepath.Join(root, "a", "dup.yaml"), "name: dup\ndescription: from a\n")

	defs, err := LoadAll(root)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "from a", defs[0].Description)
	assert.Equal(t, "from b", defs[1].Description)
}

func TestLoadAll_MissingRoot(t *testing.T) {
	_, err := LoadAll(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to access prompts directory")
}

func TestLoadAll_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.yaml")
	writeFile(t, file, greetYAML)

	_, err := LoadAll(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestLoadAll_UnreadableSubdirectoryIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok", "greet.yaml"), greetYAML)
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "hidden.yaml"), "name: hidden\n")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	defs, err := LoadAll(root)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "greet", defs[0].Name)
}
