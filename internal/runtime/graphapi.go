// internal/runtime/graphapi.go — adapts the Graph REST endpoints to our small interface
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nholloway/teams-export/internal/graph"
)

const (
	// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	// DefaultRequestTimeout bounds a single Graph request.
	DefaultRequestTimeout = 60 * time.Second

	chatPageSize = 50
)

// TokenSource supplies a valid bearer credential on demand.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource around an already-acquired access token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

type graphClient struct {
	base   string
	hc     *http.Client
	tokens TokenSource
}

// Option configures the Graph client.
type Option func(*graphClient)

// WithBaseURL overrides the Graph endpoint, mainly for tests.
func WithBaseURL(base string) Option {
	return func(g *graphClient) { g.base = base }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *graphClient) { g.hc.Timeout = d }
}

// NewGraphClient returns a graph.Client speaking Graph REST with bearer
// credentials from tokens.
func NewGraphClient(tokens TokenSource, opts ...Option) graph.Client {
	g := &graphClient{
		base:   DefaultBaseURL,
		hc:     &http.Client{Timeout: DefaultRequestTimeout},
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wire shapes for the subset of Graph fields we read.

type chatWire struct {
	ID                  string       `json:"id"`
	Topic               string       `json:"topic"`
	ChatType            string       `json:"chatType"`
	LastUpdatedDateTime string       `json:"lastUpdatedDateTime"`
	Members             []memberWire `json:"members"`
}

type memberWire struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type identityWire struct {
	DisplayName       string `json:"displayName"`
	Email             string `json:"email"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type messageWire struct {
	ID                   string `json:"id"`
	MessageType          string `json:"messageType"`
	CreatedDateTime      string `json:"createdDateTime"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	Subject              string `json:"subject"`
	From                 *struct {
		User        *identityWire `json:"user"`
		Application *identityWire `json:"application"`
	} `json:"from"`
	Body *struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Attachments []struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
		ContentURL  string `json:"contentUrl"`
	} `json:"attachments"`
	Reactions []struct {
		ReactionType string `json:"reactionType"`
	} `json:"reactions"`
	Mentions []json.RawMessage `json:"mentions"`
}

type listEnvelope[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

func (g *graphClient) ListChats(ctx context.Context) ([]graph.ChatSummary, error) {
	u := fmt.Sprintf("%s/me/chats?%s", g.base, url.Values{
		"$expand": {"members"},
		"$top":    {strconv.Itoa(chatPageSize)},
	}.Encode())

	var chats []graph.ChatSummary
	for u != "" {
		var env listEnvelope[chatWire]
		if err := g.get(ctx, u, &env); err != nil {
			return nil, fmt.Errorf("list chats: %w", err)
		}
		for _, c := range env.Value {
			chats = append(chats, toChatSummary(c))
		}
		u = env.NextLink
	}
	return chats, nil
}

func (g *graphClient) ListMessages(ctx context.Context, chatID, cursor string, pageSize int) (graph.MessagePage, error) {
	if pageSize <= 0 || pageSize > chatPageSize {
		pageSize = chatPageSize
	}
	u := cursor
	if u == "" {
		u = fmt.Sprintf("%s/me/chats/%s/messages?%s", g.base, url.PathEscape(chatID), url.Values{
			"$top": {strconv.Itoa(pageSize)},
		}.Encode())
	}

	var env listEnvelope[messageWire]
	if err := g.get(ctx, u, &env); err != nil {
		return graph.MessagePage{}, fmt.Errorf("list messages for chat %s: %w", chatID, err)
	}
	page := graph.MessagePage{NextCursor: env.NextLink}
	for _, m := range env.Value {
		page.Messages = append(page.Messages, toMessage(chatID, m))
	}
	return page, nil
}

func (g *graphClient) get(ctx context.Context, u string, out any) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// transportError marks client timeouts as graph.ErrTimeout so callers
// retry them like any other transient fault. Cancellation passes through.
func transportError(err error) error {
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", graph.ErrTimeout, err)
	}
	return err
}

// decodeAPIError builds an *graph.APIError from an error response, falling
// back to the raw body when the payload is not the standard error envelope.
func decodeAPIError(resp *http.Response, body []byte) error {
	apiErr := &graph.APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = string(body)
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}

func toChatSummary(c chatWire) graph.ChatSummary {
	out := graph.ChatSummary{
		ID:           c.ID,
		DisplayName:  c.Topic,
		Kind:         graph.ChatKind(c.ChatType),
		LastActivity: parseGraphTime(c.LastUpdatedDateTime),
	}
	for _, m := range c.Members {
		out.Participants = append(out.Participants, graph.Participant{Name: m.DisplayName, Email: m.Email})
	}
	return out
}

func toMessage(chatID string, m messageWire) graph.Message {
	out := graph.Message{
		ID:      m.ID,
		ChatID:  chatID,
		Kind:    m.MessageType,
		Subject: m.Subject,
	}
	// lastModifiedDateTime reflects edits; prefer it, as the exported
	// text should match what the chat shows today.
	ts := m.LastModifiedDateTime
	if ts == "" {
		ts = m.CreatedDateTime
	}
	out.Timestamp = parseGraphTime(ts)

	if m.From != nil {
		switch {
		case m.From.User != nil:
			out.Sender.Name = m.From.User.DisplayName
			out.Sender.Email = m.From.User.Email
			if out.Sender.Email == "" {
				out.Sender.Email = m.From.User.UserPrincipalName
			}
		case m.From.Application != nil:
			out.Sender.Name = m.From.Application.DisplayName
		}
	}
	if m.Body != nil {
		out.Body = m.Body.Content
		if m.Body.ContentType == "html" {
			out.BodyType = graph.BodyHTML
		} else {
			out.BodyType = graph.BodyText
		}
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, graph.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			URL:         a.ContentURL,
		})
	}
	out.Reactions = aggregateReactions(m)
	out.Mentions = len(m.Mentions)
	return out
}

// aggregateReactions collapses per-user reactions into {type, count} pairs,
// preserving first-seen order.
func aggregateReactions(m messageWire) []graph.Reaction {
	if len(m.Reactions) == 0 {
		return nil
	}
	counts := map[string]int{}
	var order []string
	for _, r := range m.Reactions {
		if r.ReactionType == "" {
			continue
		}
		if counts[r.ReactionType] == 0 {
			order = append(order, r.ReactionType)
		}
		counts[r.ReactionType]++
	}
	out := make([]graph.Reaction, 0, len(order))
	for _, t := range order {
		out = append(out, graph.Reaction{Type: t, Count: counts[t]})
	}
	return out
}

func parseGraphTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
