package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholloway/teams-export/internal/graph"
)

func newTestClient(t *testing.T, handler http.Handler) (graph.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGraphClient(StaticToken("test-token"), WithBaseURL(srv.URL)), srv
}

func TestListChatsFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/me/chats", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{
			"value": [{
				"id": "chat-1",
				"topic": "Platform Team",
				"chatType": "group",
				"lastUpdatedDateTime": "2025-10-01T09:00:00Z",
				"members": [{"displayName": "Jane Doe", "email": "jane@example.com"}]
			}],
			"@odata.nextLink": "%s/page2"
		}`, srv.URL)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": [{"id": "chat-2", "chatType": "oneOnOne"}]}`)
	})

	client, server := newTestClient(t, mux)
	srv = server

	chats, err := client.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "chat-1", chats[0].ID)
	assert.Equal(t, "Platform Team", chats[0].DisplayName)
	assert.Equal(t, graph.KindGroup, chats[0].Kind)
	assert.Equal(t, "Jane Doe", chats[0].Participants[0].Name)
	assert.Equal(t, time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC), chats[0].LastActivity)
	assert.Equal(t, graph.KindOneToOne, chats[1].Kind)
}

func TestListMessagesMapsWireFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/chats/chat-1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("$top"))
		fmt.Fprint(w, `{
			"value": [{
				"id": "m1",
				"messageType": "message",
				"createdDateTime": "2025-10-01T09:00:00Z",
				"lastModifiedDateTime": "2025-10-01T09:05:00Z",
				"from": {"user": {"displayName": "Jane Doe", "userPrincipalName": "jane@example.com"}},
				"body": {"contentType": "html", "content": "<p>hi</p>"},
				"attachments": [{"name": "report.pdf", "contentType": "application/pdf", "contentUrl": "https://example.com/report.pdf"}],
				"reactions": [{"reactionType": "like"}, {"reactionType": "like"}, {"reactionType": "heart"}],
				"mentions": [{}]
			}]
		}`)
	})

	client, _ := newTestClient(t, mux)

	page, err := client.ListMessages(context.Background(), "chat-1", "", 25)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Empty(t, page.NextCursor)

	m := page.Messages[0]
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "chat-1", m.ChatID)
	// Edited messages export their latest revision.
	assert.Equal(t, time.Date(2025, 10, 1, 9, 5, 0, 0, time.UTC), m.Timestamp)
	assert.Equal(t, "Jane Doe", m.Sender.Name)
	assert.Equal(t, "jane@example.com", m.Sender.Email)
	assert.Equal(t, graph.BodyHTML, m.BodyType)
	assert.Equal(t, []graph.Reaction{{Type: "like", Count: 2}, {Type: "heart", Count: 1}}, m.Reactions)
	assert.Equal(t, 1, m.Mentions)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "report.pdf", m.Attachments[0].Name)
}

func TestListMessagesUsesCursorVerbatim(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/cursor-page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("$skiptoken"))
		fmt.Fprint(w, `{"value": []}`)
	})
	client, server := newTestClient(t, mux)
	srv = server

	_, err := client.ListMessages(context.Background(), "chat-1", srv.URL+"/cursor-page?$skiptoken=abc", 50)
	require.NoError(t, err)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantKind   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: graph.ErrAuth},
		{name: "forbidden", status: http.StatusForbidden, wantKind: graph.ErrAuth},
		{name: "throttled", status: http.StatusTooManyRequests, retryAfter: "7", wantKind: graph.ErrThrottled},
		{name: "server error", status: http.StatusBadGateway, wantKind: graph.ErrServer},
		{name: "not found", status: http.StatusNotFound, wantKind: graph.ErrNotFound},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.retryAfter != "" {
					w.Header().Set("Retry-After", tc.retryAfter)
				}
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error": {"code": "SomeCode", "message": "nope"}}`)
			}))

			_, err := client.ListMessages(context.Background(), "chat-1", "", 50)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantKind)

			var apiErr *graph.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, "SomeCode", apiErr.Code)
			if tc.retryAfter != "" {
				assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
			}
		})
	}
}

func TestErrorFallsBackToRawBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "gateway exploded")
	}))

	_, err := client.ListChats(context.Background())
	require.Error(t, err)
	var apiErr *graph.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "gateway exploded")
}

func TestTimedOutRequestIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client := NewGraphClient(StaticToken("test-token"),
		WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))

	_, err := client.ListChats(context.Background())
	require.ErrorIs(t, err, graph.ErrTimeout)
	assert.True(t, graph.Transient(err), "timeouts must be retryable")
}

func TestTransportErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"client timeout", &url.Error{Op: "Get", URL: "https://example.com", Err: timeoutErr{}}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"cancellation", context.Canceled, false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := transportError(tc.err)
			assert.Equal(t, tc.transient, errors.Is(got, graph.ErrTimeout))
			if !tc.transient {
				assert.Equal(t, tc.err, got, "non-timeouts must pass through unchanged")
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string {
	return "context deadline exceeded (Client.Timeout exceeded while awaiting headers)"
}
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
