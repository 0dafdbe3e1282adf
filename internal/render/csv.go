package render

import (
	"bytes"
	"encoding/csv"
	"time"

	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/graph"
)

type csvRenderer struct{}

func (csvRenderer) Ext() string { return "csv" }

func (csvRenderer) Render(_ graph.ChatSummary, messages []graph.Message, _ dates.Window) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "sender", "sender_email", "content", "type"}); err != nil {
		return nil, err
	}
	for _, m := range messages {
		row := []string{
			m.Timestamp.UTC().Format(time.RFC3339),
			m.Sender.Name,
			m.Sender.Email,
			flatten(m),
			m.Kind,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
