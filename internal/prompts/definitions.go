package prompts

import (
	"log/slog"
	"strings"
)

// ArgumentType is the declared type of a prompt argument. It only shapes the
// generated tool input schema.
type ArgumentType string

const (
	ArgumentString  ArgumentType = "string"
	ArgumentNumber  ArgumentType = "number"
	ArgumentBoolean ArgumentType = "boolean"
)

// Role is the author of a prompt message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentKind discriminates the payload carried by a Content block
type ContentKind int

const (
	// KindOther is any type tag that is neither text nor an image
	KindOther ContentKind = iota
	// KindText is template text that supports {{name}} placeholders
	KindText
	// KindImage is a base64 payload with an image/* media type
	KindImage
)

// Definition definition of a prompt loaded from disk
type Definition struct {
	Name        string
	Description string
	Arguments   []Argument
	Messages    []Message
	SourcePath  string
}

// Argument definition of a prompt argument
type Argument struct {
	Name        string
	Description string
	Type        ArgumentType
	Required    bool
}

// Message is a single message template
type Message struct {
	Role    Role
	Content *Content
}

// Content is the single content block of a message. Type holds the raw tag
// from the document ("text", "image/png", ...), Kind the parsed discriminant.
type Content struct {
	Kind ContentKind
	Type string
	Text *string
}

// IsText reports whether the block carries substitutable template text
func (c *Content) IsText() bool {
	return c != nil && c.Kind == KindText && c.Text != nil
}

// TextValue returns the text payload, or "" when absent
func (c *Content) TextValue() string {
	if c == nil || c.Text == nil {
		return ""
	}
	return *c.Text
}

func (c *Content) clone() *Content {
	if c == nil {
		return nil
	}
	out := *c
	if c.Text != nil {
		text := *c.Text
		out.Text = &text
	}
	return &out
}

// ParseArgumentType normalizes a declared type; unknown types are strings
func ParseArgumentType(s string) ArgumentType {
	switch ArgumentType(strings.ToLower(strings.TrimSpace(s))) {
	case ArgumentNumber:
		return ArgumentNumber
	case ArgumentBoolean:
		return ArgumentBoolean
	default:
		return ArgumentString
	}
}

// ParseRole normalizes a message role. Unrecognized values map to RoleUser.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	case RoleSystem:
		return RoleSystem, true
	default:
		return RoleUser, false
	}
}

// ParseContentKind derives the discriminant from a content type tag. An
// omitted tag is treated as text.
func ParseContentKind(contentType string) ContentKind {
	t := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case t == "" || t == "text":
		return KindText
	case strings.HasPrefix(t, "image/"):
		return KindImage
	default:
		return KindOther
	}
}

// document is the on-disk shape shared by the YAML and JSON decoders
type document struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description" json:"description"`
	Arguments   []argumentDocument `yaml:"arguments" json:"arguments"`
	Messages    []messageDocument  `yaml:"messages" json:"messages"`
}

type argumentDocument struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Type        string `yaml:"type" json:"type"`
	Required    bool   `yaml:"required" json:"required"`
}

type messageDocument struct {
	Role    string           `yaml:"role" json:"role"`
	Content *contentDocument `yaml:"content" json:"content"`
}

type contentDocument struct {
	Type string  `yaml:"type" json:"type"`
	Text *string `yaml:"text" json:"text"`
}

// toDefinition converts a decoded document into a Definition. The caller has
// already checked that the name is present.
func (d *document) toDefinition(sourcePath string) *Definition {
	def := &Definition{
		Name:        d.Name,
		Description: d.Description,
		SourcePath:  sourcePath,
	}

	for _, a := range d.Arguments {
		if a.Name == "" {
			slog.Warn("Skipping prompt argument without a name", "prompt", d.Name, "file", sourcePath)
			continue
		}
		def.Arguments = append(def.Arguments, Argument{
			Name:        a.Name,
			Description: a.Description,
			Type:        ParseArgumentType(a.Type),
			Required:    a.Required,
		})
	}

	for i, m := range d.Messages {
		role, ok := ParseRole(m.Role)
		if !ok {
			slog.Warn("Unknown message role, defaulting to user", "prompt", d.Name, "index", i, "role", m.Role)
		}

		msg := Message{Role: role}
		if m.Content != nil {
			msg.Content = &Content{
				Kind: ParseContentKind(m.Content.Type),
				Type: m.Content.Type,
				Text: m.Content.Text,
			}
		}
		def.Messages = append(def.Messages, msg)
	}

	return def
}
