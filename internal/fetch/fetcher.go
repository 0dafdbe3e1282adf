// Package fetch retrieves a chat's messages within a date window from the
// paginated Graph feed, retrying transient failures with backoff.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/graph"
	"github.com/nholloway/teams-export/internal/rate"
)

// DefaultPageSize is the Graph cap for the chat message feed.
const DefaultPageSize = 50

// Result is what one chat fetch produced. Messages are in ascending
// chronological order. Truncated is set when retries were exhausted and the
// accumulated prefix is all we have; Err then records the transient cause.
// A non-nil Err with Truncated false means the fetch failed outright.
type Result struct {
	ChatID    string
	Messages  []graph.Message
	Truncated bool
	Err       error
}

// Fetcher pages through chat message feeds. Sleep is injectable so tests
// need not wait out backoff delays.
type Fetcher struct {
	Client   graph.Client
	Limiter  rate.Limiter
	Log      *slog.Logger
	Retry    RetryPolicy
	Sleep    func(ctx context.Context, d time.Duration) error
	PageSize int
}

// NewFetcher constructs a Fetcher with sane defaults.
func NewFetcher(client graph.Client, limiter rate.Limiter, logger *slog.Logger) *Fetcher {
	if limiter == nil {
		limiter = rate.None{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Fetcher{
		Client:   client,
		Limiter:  limiter,
		Log:      logger,
		Retry:    DefaultRetryPolicy(),
		Sleep:    sleepCtx,
		PageSize: DefaultPageSize,
	}
}

// Fetch collects every message of chatID inside window. The feed is newest
// first, so pages are filtered as they arrive and the accumulator is
// reversed once at the end. Once a page's newest message predates the
// window no later page can contain a hit, and paging stops.
func (f *Fetcher) Fetch(ctx context.Context, chatID string, window dates.Window) Result {
	res := Result{ChatID: chatID}
	cursor := ""
	for {
		page, err := f.fetchPage(ctx, chatID, cursor)
		if err != nil {
			// An exhausted transient error keeps the prefix gathered so far.
			res.Truncated = graph.Transient(err)
			res.Err = err
			break
		}

		for _, m := range page.Messages {
			if window.Contains(m.Timestamp) {
				res.Messages = append(res.Messages, m)
			}
		}
		if len(page.Messages) > 0 && page.Messages[0].Timestamp.Before(window.Start()) {
			break
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	reverse(res.Messages)
	return res
}

// fetchPage requests one page, retrying throttled, server, and timeout
// errors per the policy. The page request itself is the only state shared between
// attempts; the cursor is opaque and reused verbatim.
func (f *Fetcher) fetchPage(ctx context.Context, chatID, cursor string) (graph.MessagePage, error) {
	var lastErr error
	for attempt := 0; attempt < f.Retry.MaxAttempts; attempt++ {
		if err := f.Limiter.Wait(ctx); err != nil {
			return graph.MessagePage{}, err
		}
		page, err := f.Client.ListMessages(ctx, chatID, cursor, f.PageSize)
		if err == nil {
			return page, nil
		}
		if !graph.Transient(err) {
			return graph.MessagePage{}, err
		}
		lastErr = err
		if attempt+1 == f.Retry.MaxAttempts {
			break
		}

		delay := f.Retry.Delay(attempt)
		if ra := graph.RetryAfter(err); ra > delay {
			delay = ra
		}
		f.Log.Warn("transient graph error, backing off",
			"chat", chatID, "attempt", attempt+1, "delay", delay, "error", err)
		if err := f.Sleep(ctx, delay); err != nil {
			return graph.MessagePage{}, err
		}
	}
	return graph.MessagePage{}, fmt.Errorf("page request failed after %d attempts: %w", f.Retry.MaxAttempts, lastErr)
}

func reverse(msgs []graph.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
