// Package export drives one-or-many chat exports through a bounded worker
// pool, collecting per-chat outcomes and reporting aggregate progress.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/fetch"
	"github.com/nholloway/teams-export/internal/fsio"
	"github.com/nholloway/teams-export/internal/graph"
	"github.com/nholloway/teams-export/internal/render"
)

// MaxConcurrency is the hard cap on simultaneous chat exports; Graph
// throttles aggressively beyond a few concurrent readers.
const MaxConcurrency = 3

// Fetcher is the message-feed surface the coordinator needs.
type Fetcher interface {
	Fetch(ctx context.Context, chatID string, window dates.Window) fetch.Result
}

// Status classifies a single chat's export.
type Status int

const (
	StatusSuccess Status = iota
	StatusPartial
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome is the result of exporting one chat.
type Outcome struct {
	ChatID     string
	Title      string
	Status     Status
	OutputPath string
	Messages   int
	Err        error
}

// Progress observes batch progress as each chat completes.
type Progress func(completed, total int, title string)

// Coordinator runs chat exports. Shared state between workers is the
// completed counter and the outcomes slice, both behind one mutex.
type Coordinator struct {
	Fetcher     Fetcher
	Renderer    render.Renderer
	Log         *slog.Logger
	OutputDir   string
	Concurrency int
	OnProgress  Progress
}

// NewCoordinator constructs a Coordinator writing to outputDir.
func NewCoordinator(fetcher Fetcher, renderer render.Renderer, logger *slog.Logger, outputDir string) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Coordinator{
		Fetcher:     fetcher,
		Renderer:    renderer,
		Log:         logger,
		OutputDir:   outputDir,
		Concurrency: MaxConcurrency,
	}
}

// ExportAll exports every chat in chats over window. It returns one outcome
// per input chat, in no particular order. A single chat's failure never
// aborts its siblings; cancellation stops scheduling and marks the chats
// that never ran as failed.
func (c *Coordinator) ExportAll(ctx context.Context, chats []graph.ChatSummary, window dates.Window) []Outcome {
	total := len(chats)
	if total == 0 {
		return nil
	}
	if total == 1 {
		out := c.exportOne(ctx, chats[0], window)
		c.report(1, 1, out)
		return []Outcome{out}
	}

	workers := c.Concurrency
	if workers <= 0 || workers > MaxConcurrency {
		workers = MaxConcurrency
	}
	if workers > total {
		workers = total
	}

	var (
		mu        sync.Mutex
		outcomes  = make([]Outcome, 0, total)
		completed int
	)
	record := func(out Outcome) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		outcomes = append(outcomes, out)
		c.report(completed, total, out)
	}

	jobs := make(chan graph.ChatSummary)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chat := range jobs {
				record(c.exportOne(ctx, chat, window))
			}
		}()
	}

	var unscheduled []graph.ChatSummary
feed:
	for i, chat := range chats {
		select {
		case jobs <- chat:
		case <-ctx.Done():
			unscheduled = chats[i:]
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Chats that were never scheduled still get an outcome entry.
	for _, chat := range unscheduled {
		record(Outcome{
			ChatID: chat.ID,
			Title:  chat.Title(),
			Status: StatusFailed,
			Err:    ctx.Err(),
		})
	}
	return outcomes
}

// exportOne fetches, renders, and writes a single chat. The output file is
// written only once the full result is assembled, and atomically, so a
// cancel or crash never leaves a truncated export behind.
func (c *Coordinator) exportOne(ctx context.Context, chat graph.ChatSummary, window dates.Window) Outcome {
	out := Outcome{ChatID: chat.ID, Title: chat.Title()}

	res := c.Fetcher.Fetch(ctx, chat.ID, window)
	if res.Err != nil && !res.Truncated {
		out.Status = StatusFailed
		out.Err = res.Err
		return out
	}

	data, err := c.Renderer.Render(chat, res.Messages, window)
	if err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("render %s: %w", out.Title, err)
		return out
	}

	path := filepath.Join(c.OutputDir, FileName(chat, window, c.Renderer.Ext()))
	if err := fsio.WriteFileAtomic(path, data, 0o644); err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("write export: %w", err)
		return out
	}

	out.OutputPath = path
	out.Messages = len(res.Messages)
	if res.Truncated {
		out.Status = StatusPartial
		out.Err = res.Err
		c.Log.Warn("export truncated", "chat", out.Title, "messages", out.Messages, "error", res.Err)
	} else {
		out.Status = StatusSuccess
		c.Log.Info("export complete", "chat", out.Title, "messages", out.Messages, "path", path)
	}
	return out
}

func (c *Coordinator) report(completed, total int, out Outcome) {
	if c.OnProgress != nil {
		c.OnProgress(completed, total, out.Title)
	}
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// FileName builds the export file name: slugified chat title plus the
// window's date fragment.
func FileName(chat graph.ChatSummary, window dates.Window, ext string) string {
	slug := unsafeFilename.ReplaceAllString(strings.TrimSpace(chat.Title()), "_")
	slug = strings.Trim(strings.ToLower(slug), "_")
	if slug == "" {
		slug = "chat"
	}
	return fmt.Sprintf("%s_%s.%s", slug, window.Fragment(), ext)
}

// Summarize folds the failed outcomes of a batch into one error, nil when
// every chat exported (possibly partially).
func Summarize(outcomes []Outcome) error {
	var merr *multierror.Error
	for _, out := range outcomes {
		if out.Status == StatusFailed {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", out.Title, out.Err))
		}
	}
	return merr.ErrorOrNil()
}
