package format

import "github.com/charmbracelet/glamour"

const DEFAULT_STYLE = "dark"

func FormatMarkdown(text string) (string, error) {
	return glamour.Render(text, DEFAULT_STYLE)
}

// FormatMarkdownWidth renders text word-wrapped at width columns.
func FormatMarkdownWidth(text string, width int) (string, error) {
	if width <= 0 {
		return FormatMarkdown(text)
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(DEFAULT_STYLE),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}
