package lesson

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var notesMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderNotes converts the Markdown notes of a render event to HTML for a
// caption or notes pane. Raw HTML in the notes is dropped.
func RenderNotes(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := notesMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("error rendering notes: %w", err)
	}
	return buf.String(), nil
}
