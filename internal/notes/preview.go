package notes

import (
	"html"
	"strings"
	"unicode/utf8"
)

const (
	previewRuneLimit = 30
	// DefaultTitle is used when a note is created or rendered without one.
	DefaultTitle = "Untitled Note"
)

// PlainText strips markup tags from a rich-text string and unescapes HTML
// entities, returning the visible text. Tags never nest in the editor's
// output, so a single-level scan is sufficient.
func PlainText(markup string) string {
	var builder strings.Builder
	insideTag := false
	for _, r := range markup {
		switch {
		case r == '<':
			insideTag = true
		case r == '>':
			insideTag = false
		case !insideTag:
			builder.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(builder.String()))
}

// PreviewText derives the sidebar preview line from note content: plain text
// truncated to 30 runes with a trailing ellipsis when cut.
func PreviewText(markup string) string {
	plain := PlainText(markup)
	if utf8.RuneCountInString(plain) <= previewRuneLimit {
		return plain
	}
	runes := []rune(plain)
	return string(runes[:previewRuneLimit]) + "..."
}

// PlainTitle derives the sidebar title line, falling back to DefaultTitle for
// notes whose title markup has no visible text.
func PlainTitle(markup string) string {
	plain := PlainText(markup)
	if plain == "" {
		return DefaultTitle
	}
	return plain
}
