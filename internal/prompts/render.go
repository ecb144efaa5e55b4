package prompts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render substitutes {{name}} placeholders in every text block with the
// matching argument value. Inputs are left untouched; each returned message
// and content block is a fresh value. Substitution is a single literal pass,
// so values that themselves contain placeholders are not expanded again.
func Render(messages []Message, args map[string]any) []Message {
	replacer := newReplacer(args)

	rendered := make([]Message, len(messages))
	for i, msg := range messages {
		out := Message{Role: msg.Role, Content: msg.Content.clone()}
		if replacer != nil && out.Content.IsText() {
			text := replacer.Replace(*out.Content.Text)
			out.Content.Text = &text
		}
		rendered[i] = out
	}
	return rendered
}

// RenderStrings is Render for string-valued arguments
func RenderStrings(messages []Message, args map[string]string) []Message {
	converted := make(map[string]any, len(args))
	for k, v := range args {
		converted[k] = v
	}
	return Render(messages, converted)
}

func newReplacer(args map[string]any) *strings.Replacer {
	if len(args) == 0 {
		return nil
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	// Longer keys first so a placeholder that extends another one wins at the
	// same position, independent of map order.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(args)*2)
	for _, key := range keys {
		pairs = append(pairs, "{{"+key+"}}", FormatValue(args[key]))
	}
	return strings.NewReplacer(pairs...)
}

// FormatValue renders an argument value as placeholder text. Nil becomes the
// empty string and numbers use their shortest decimal form.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
