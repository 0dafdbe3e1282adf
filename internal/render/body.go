package render

import (
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"

	"github.com/nholloway/teams-export/internal/graph"
)

var (
	imgPattern    = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["'][^>]*>`)
	altPattern    = regexp.MustCompile(`(?i)alt=["']([^"']*)["']`)
	itemIDPattern = regexp.MustCompile(`(?i)itemid=["']([^"']+)["']`)
)

// inlineImage is an image embedded in an HTML message body. Teams pastes
// screenshots as hosted <img> tags rather than attachments.
type inlineImage struct {
	Src string
	Alt string
}

// extractImages pulls inline images out of an HTML body so the renderers
// can reference them separately from the text.
func extractImages(body string) []inlineImage {
	var images []inlineImage
	for _, tag := range imgPattern.FindAllStringSubmatch(body, -1) {
		img := inlineImage{Src: tag[1], Alt: "image"}
		if m := altPattern.FindStringSubmatch(tag[0]); m != nil && m[1] != "" {
			img.Alt = m[1]
		}
		// itemid carries the hosted-content name, which beats generic alt text.
		if m := itemIDPattern.FindStringSubmatch(tag[0]); m != nil {
			img.Alt = m[1]
		}
		images = append(images, img)
	}
	return images
}

// flatten reduces a message body to plain text. HTML bodies are converted;
// text bodies pass through trimmed.
func flatten(m graph.Message) string {
	if m.BodyType != graph.BodyHTML {
		return strings.TrimSpace(m.Body)
	}
	stripped := imgPattern.ReplaceAllString(m.Body, "")
	text, err := html2text.FromString(stripped, html2text.Options{TextOnly: true})
	if err != nil {
		return strings.TrimSpace(stripped)
	}
	return strings.TrimSpace(text)
}

// flattenKeepLinks is flatten but preserves hyperlink targets, for the
// markdown renderer.
func flattenKeepLinks(m graph.Message) string {
	if m.BodyType != graph.BodyHTML {
		return strings.TrimSpace(m.Body)
	}
	stripped := imgPattern.ReplaceAllString(m.Body, "")
	text, err := html2text.FromString(stripped, html2text.Options{OmitLinks: false})
	if err != nil {
		return strings.TrimSpace(stripped)
	}
	return strings.TrimSpace(text)
}

// bodyOrPlaceholder substitutes the conventional placeholders for empty and
// system-event messages. hasAttachments suppresses the empty placeholder
// when the message is attachment-only.
func bodyOrPlaceholder(content string, m graph.Message, hasAttachments bool) string {
	if content != "" {
		return content
	}
	if m.SystemEvent() {
		return "[system event]"
	}
	if !hasAttachments {
		return "[no content]"
	}
	return ""
}
