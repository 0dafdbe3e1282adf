// Package render converts an ordered message sequence into one of the
// supported output representations. Renderers are deterministic: the same
// messages and window always produce identical bytes.
package render

import (
	"fmt"
	"strings"

	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/graph"
)

// Format tags an output representation.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat interprets a CLI format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported export format %q; choose json, csv, markdown, or text", s)
}

// Renderer turns one chat's messages into output bytes.
type Renderer interface {
	Render(chat graph.ChatSummary, messages []graph.Message, window dates.Window) ([]byte, error)
	// Ext is the file extension for this format, without the dot.
	Ext() string
}

// New returns the renderer for format.
func New(format Format) (Renderer, error) {
	switch format {
	case FormatJSON:
		return jsonRenderer{}, nil
	case FormatCSV:
		return csvRenderer{}, nil
	case FormatMarkdown:
		return markdownRenderer{}, nil
	case FormatText:
		return textRenderer{}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

const timestampLayout = "2006-01-02 15:04:05 MST"

// displayTime formats a message timestamp for human-readable formats.
func displayTime(m graph.Message) string {
	if m.Timestamp.IsZero() {
		return "no timestamp"
	}
	return m.Timestamp.Format(timestampLayout)
}
