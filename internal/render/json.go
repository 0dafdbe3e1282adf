package render

import (
	"encoding/json"
	"time"

	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/graph"
)

// record is the exported JSON shape of one message.
type record struct {
	ID          string             `json:"id"`
	Sender      string             `json:"sender,omitempty"`
	SenderEmail string             `json:"sender_email,omitempty"`
	Timestamp   string             `json:"timestamp"`
	Type        string             `json:"type,omitempty"`
	Subject     string             `json:"subject,omitempty"`
	ContentType string             `json:"content_type"`
	Content     string             `json:"content"`
	Reactions   []graph.Reaction   `json:"reactions,omitempty"`
	Mentions    int                `json:"mentions,omitempty"`
	Attachments []graph.Attachment `json:"attachments,omitempty"`
}

type jsonRenderer struct{}

func (jsonRenderer) Ext() string { return "json" }

func (jsonRenderer) Render(_ graph.ChatSummary, messages []graph.Message, _ dates.Window) ([]byte, error) {
	records := make([]record, 0, len(messages))
	for _, m := range messages {
		records = append(records, record{
			ID:          m.ID,
			Sender:      m.Sender.Name,
			SenderEmail: m.Sender.Email,
			Timestamp:   m.Timestamp.UTC().Format(time.RFC3339),
			Type:        m.Kind,
			Subject:     m.Subject,
			ContentType: string(m.BodyType),
			Content:     m.Body,
			Reactions:   m.Reactions,
			Mentions:    m.Mentions,
			Attachments: m.Attachments,
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
