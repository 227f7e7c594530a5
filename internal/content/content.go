// Package content renders outreach messages from a text template.
package content

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/yourusername/linkedin-outreach/internal/session"
)

// FallbackName stands in for a candidate whose name was not found.
const FallbackName = "there"

const ellipsis = "..."

// Template is a message with {{name}}, {{first_name}}, {{headline}} and
// {{detail}} placeholders. Unknown placeholders are left as they are.
type Template struct {
	Text string
	// MaxLength caps the rendered message in runes. Zero means no cap.
	MaxLength int
}

// Compose implements session.Composer.
func (t Template) Compose(_ context.Context, c session.Candidate) (string, error) {
	return t.Render(c), nil
}

// Render fills in the placeholders for c and truncates the result.
func (t Template) Render(c session.Candidate) string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = FallbackName
	}

	msg := Render(t.Text, map[string]string{
		"name":       name,
		"first_name": FirstName(name),
		"headline":   strings.TrimSpace(c.Headline),
		"detail":     strings.TrimSpace(c.Detail),
	})
	return Truncate(strings.TrimSpace(msg), t.MaxLength)
}

// Render replaces every {{key}} in text with its value.
func Render(text string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// FirstName returns the first word of name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Truncate shortens s to limit runes, ending it with "..." when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-len(ellipsis)]) + ellipsis
}
