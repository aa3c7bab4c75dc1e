package tui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

var highlightStyle = func() *chroma.Style {
	s := styles.Get("dracula")
	if s == nil {
		s = styles.Fallback
	}
	return s
}()

// highlight colors source in the given language. Unknown languages and
// tokenizer failures return the text in the plain result style.
func highlight(source, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		return toolResultStyle.Render(source)
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return toolResultStyle.Render(source)
	}

	var b strings.Builder
	for _, token := range iterator.Tokens() {
		b.WriteString(formatToken(token.Value, highlightStyle.Get(token.Type)))
	}
	return b.String()
}

// formatToken converts a chroma style entry to lipgloss. Newlines are kept
// outside the styled runs so each line carries its own escape codes.
func formatToken(value string, entry chroma.StyleEntry) string {
	style := toolResultStyle
	if entry.Colour.IsSet() {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color(entry.Colour.String()))
	}
	if entry.Bold == chroma.Yes {
		style = style.Bold(true)
	}
	if entry.Italic == chroma.Yes {
		style = style.Italic(true)
	}

	lines := strings.Split(value, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
