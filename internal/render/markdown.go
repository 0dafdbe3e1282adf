package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/graph"
)

// markdownRenderer emits standard Markdown that also pastes cleanly into
// Jira and GitHub: a chat header, then one blockquoted block per message.
type markdownRenderer struct{}

func (markdownRenderer) Ext() string { return "md" }

func (markdownRenderer) Render(chat graph.ChatSummary, messages []graph.Message, window dates.Window) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "## %s\n\n", chat.Title())
	if participants := participantLine(chat); participants != "" {
		fmt.Fprintf(&buf, "**Participants:** %s\n", participants)
	}
	fmt.Fprintf(&buf, "**Date Range:** %s\n\n---\n\n", window)

	if len(messages) == 0 {
		buf.WriteString("*No messages found in the specified date range.*\n")
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "### Messages (%d total)\n\n", len(messages))
	for _, m := range messages {
		writeMarkdownMessage(&buf, m)
	}
	return buf.Bytes(), nil
}

func participantLine(chat graph.ChatSummary) string {
	var labels []string
	for _, p := range chat.Participants {
		switch {
		case p.Name != "":
			labels = append(labels, p.Name)
		case p.Email != "":
			labels = append(labels, p.Email)
		}
	}
	return strings.Join(labels, ", ")
}

func writeMarkdownMessage(buf *bytes.Buffer, m graph.Message) {
	sender := m.Sender.Name
	if sender == "" {
		sender = "Unknown"
	}

	reactions := ""
	if len(m.Reactions) > 0 {
		var parts []string
		for _, r := range m.Reactions {
			if r.Count > 1 {
				parts = append(parts, fmt.Sprintf("%s x%d", r.Type, r.Count))
			} else {
				parts = append(parts, r.Type)
			}
		}
		reactions = fmt.Sprintf(" [%s]", strings.Join(parts, ", "))
	}

	fmt.Fprintf(buf, "**%s** — *%s*%s\n\n", sender, displayTime(m), reactions)

	images := extractImages(m.Body)
	attachmentLines := make([]string, 0, len(images)+len(m.Attachments))
	for _, img := range images {
		attachmentLines = append(attachmentLines, fmt.Sprintf("![%s](%s)", img.Alt, img.Src))
	}
	for _, att := range m.Attachments {
		attachmentLines = append(attachmentLines, attachmentLine(att))
	}

	content := bodyOrPlaceholder(flattenKeepLinks(m), m, len(attachmentLines) > 0)
	if content != "" {
		for _, line := range strings.Split(content, "\n") {
			if line == "" {
				buf.WriteString(">\n")
			} else {
				fmt.Fprintf(buf, "> %s\n", line)
			}
		}
		buf.WriteString("\n")
	}

	for _, line := range attachmentLines {
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	if len(attachmentLines) > 0 {
		buf.WriteString("\n")
	}
}

func attachmentLine(att graph.Attachment) string {
	name := att.Name
	if name == "" {
		name = "Attachment"
	}
	if att.URL == "" {
		return fmt.Sprintf("📎 %s (no URL)", name)
	}
	if isImage(att) {
		return fmt.Sprintf("![%s](%s)", name, att.URL)
	}
	return fmt.Sprintf("📎 [%s](%s)", name, att.URL)
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".webp"}

func isImage(att graph.Attachment) bool {
	if att.ContentType != "" {
		return strings.HasPrefix(att.ContentType, "image/")
	}
	lower := strings.ToLower(att.Name)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
