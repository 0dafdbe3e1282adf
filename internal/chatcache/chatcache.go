// Package chatcache keeps a short-lived on-disk copy of the user's chat
// list so repeated invocations do not re-list every chat.
package chatcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nholloway/teams-export/internal/fsio"
	"github.com/nholloway/teams-export/internal/graph"
	"github.com/nholloway/teams-export/internal/rate"
)

// DefaultTTL is how long a persisted index stays fresh.
const DefaultTTL = 5 * time.Minute

// Index is a snapshot of the user's chat list. Entries are deduplicated by
// id; FetchedAt never decreases across successive refreshes.
type Index struct {
	Entries   []graph.ChatSummary `json:"entries"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// Store owns the persisted index. It is read-mostly within one run; no
// concurrent writers are assumed.
type Store struct {
	Client  graph.Client
	Limiter rate.Limiter
	Log     *slog.Logger
	Clock   func() time.Time
	Path    string
	TTL     time.Duration
}

// NewStore constructs a Store with default TTL and clock.
func NewStore(client graph.Client, limiter rate.Limiter, logger *slog.Logger, path string) *Store {
	if limiter == nil {
		limiter = rate.None{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Store{
		Client:  client,
		Limiter: limiter,
		Log:     logger,
		Clock:   time.Now,
		Path:    path,
		TTL:     DefaultTTL,
	}
}

// Get returns the chat index, refreshing from Graph when the persisted copy
// is missing, stale, malformed, or forceRefresh is set. A fresh persisted
// index is returned without any network call.
func (s *Store) Get(ctx context.Context, forceRefresh bool) (Index, error) {
	prev, ok := s.load()
	if ok && !forceRefresh && s.Clock().Sub(prev.FetchedAt) < s.TTL {
		return prev, nil
	}
	return s.refresh(ctx, prev, ok)
}

func (s *Store) refresh(ctx context.Context, prev Index, havePrev bool) (Index, error) {
	if err := s.Limiter.Wait(ctx); err != nil {
		return Index{}, err
	}
	chats, err := s.Client.ListChats(ctx)
	if err != nil {
		return Index{}, fmt.Errorf("refresh chat index: %w", err)
	}

	stamp := s.Clock()
	if havePrev && !stamp.After(prev.FetchedAt) {
		// fetchedAt never moves backwards, even if the wall clock does.
		stamp = prev.FetchedAt.Add(time.Nanosecond)
	}
	index := Index{Entries: dedupe(chats), FetchedAt: stamp}

	if err := s.persist(index); err != nil {
		// A read-only cache directory should not fail the run.
		s.Log.Warn("persist chat index failed", "path", s.Path, "error", err)
	}
	s.Log.Info("chat index refreshed", "chats", len(index.Entries))
	return index, nil
}

// load reads the persisted index. Absence or corruption is a cache miss,
// never an error the caller sees.
func (s *Store) load() (Index, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Log.Debug("read chat index failed", "path", s.Path, "error", err)
		}
		return Index{}, false
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		s.Log.Debug("malformed chat index treated as miss", "path", s.Path, "error", err)
		return Index{}, false
	}
	if index.FetchedAt.IsZero() {
		return Index{}, false
	}
	return index, true
}

func (s *Store) persist(index Index) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return fsio.WriteFileAtomic(s.Path, data, 0o644)
}

func dedupe(chats []graph.ChatSummary) []graph.ChatSummary {
	seen := make(map[string]struct{}, len(chats))
	out := make([]graph.ChatSummary, 0, len(chats))
	for _, c := range chats {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
