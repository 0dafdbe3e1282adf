package render

import (
	"bytes"
	"fmt"

	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/graph"
)

// textRenderer emits a plain transcript.
type textRenderer struct{}

func (textRenderer) Ext() string { return "txt" }

func (textRenderer) Render(chat graph.ChatSummary, messages []graph.Message, window dates.Window) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s (%s)\n", chat.Title(), window)
	fmt.Fprintf(&buf, "%d messages\n\n", len(messages))

	for _, m := range messages {
		sender := m.Sender.Name
		if sender == "" {
			sender = "Unknown"
		}
		body := bodyOrPlaceholder(flatten(m), m, len(m.Attachments) > 0)
		fmt.Fprintf(&buf, "[%s] %s: %s\n", displayTime(m), sender, body)
		for _, att := range m.Attachments {
			name := att.Name
			if name == "" {
				name = "attachment"
			}
			if att.URL != "" {
				fmt.Fprintf(&buf, "    [attachment] %s (%s)\n", name, att.URL)
			} else {
				fmt.Fprintf(&buf, "    [attachment] %s\n", name)
			}
		}
	}
	return buf.Bytes(), nil
}
