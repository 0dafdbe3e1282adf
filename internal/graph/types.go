package graph

import (
	"strings"
	"time"
)

// ChatKind distinguishes one-to-one chats from group (and meeting) chats.
type ChatKind string

const (
	KindOneToOne ChatKind = "oneOnOne"
	KindGroup    ChatKind = "group"
	KindMeeting  ChatKind = "meeting"
)

// Participant is a chat member as Graph reports it.
type Participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ChatSummary is one entry of the user's chat list. Immutable once fetched;
// identity is ID.
type ChatSummary struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name,omitempty"`
	Kind         ChatKind      `json:"kind"`
	Participants []Participant `json:"participants,omitempty"`
	LastActivity time.Time     `json:"last_activity"`
}

// Title returns a human-readable name for the chat: the topic if set,
// otherwise the joined member names, otherwise the raw id.
func (c ChatSummary) Title() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	var labels []string
	for _, p := range c.Participants {
		switch {
		case p.Name != "":
			labels = append(labels, p.Name)
		case p.Email != "":
			labels = append(labels, p.Email)
		}
	}
	if len(labels) > 0 {
		return strings.Join(labels, ", ")
	}
	return c.ID
}

// KindLabel returns a short label for listings ("1:1", "Group", "Meeting").
func (c ChatSummary) KindLabel() string {
	switch c.Kind {
	case KindOneToOne:
		return "1:1"
	case KindGroup:
		return "Group"
	case KindMeeting:
		return "Meeting"
	}
	if c.Kind == "" {
		return "Unknown"
	}
	return string(c.Kind)
}

// Sender identifies who posted a message, user or application.
type Sender struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Attachment references a file or card attached to a message. Content is
// never downloaded; URL points at the hosted copy.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Reaction aggregates reactions of one type on a message.
type Reaction struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// BodyKind is the markup flavour of a message body.
type BodyKind string

const (
	BodyText BodyKind = "text"
	BodyHTML BodyKind = "html"
)

// Message is a single chat message. Immutable; identity is ID within a chat.
type Message struct {
	ID          string       `json:"id"`
	ChatID      string       `json:"chat_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Sender      Sender       `json:"sender"`
	Kind        string       `json:"kind,omitempty"` // Graph messageType, e.g. "message", "systemEventMessage"
	Subject     string       `json:"subject,omitempty"`
	Body        string       `json:"body"`
	BodyType    BodyKind     `json:"body_type"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
	Mentions    int          `json:"mentions,omitempty"`
}

// SystemEvent reports whether the message is a Teams system event rather
// than something a participant wrote.
func (m Message) SystemEvent() bool {
	return m.Kind == "systemEventMessage"
}

// MessagePage is one page of a chat's message feed, newest first.
type MessagePage struct {
	Messages   []Message
	NextCursor string
}
