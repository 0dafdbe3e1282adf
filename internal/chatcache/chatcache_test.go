package chatcache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nholloway/teams-export/internal/graph"
	"github.com/nholloway/teams-export/internal/rate"
)

type fakeClient struct {
	chats     []graph.ChatSummary
	listCalls int
	listErr   error
}

func (f *fakeClient) ListChats(ctx context.Context) ([]graph.ChatSummary, error) {
	_ = ctx
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.chats, nil
}

func (f *fakeClient) ListMessages(ctx context.Context, chatID, cursor string, pageSize int) (graph.MessagePage, error) {
	_ = ctx
	_ = chatID
	_ = cursor
	_ = pageSize
	return graph.MessagePage{}, nil
}

func newTestStore(t *testing.T, client *fakeClient) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(client, rate.None{}, slogDiscard(), filepath.Join(t.TempDir(), "chats_cache.json"))
	store.Clock = func() time.Time { return now }
	return store, &now
}

func TestGetFreshCacheSkipsNetwork(t *testing.T) {
	client := &fakeClient{chats: []graph.ChatSummary{{ID: "c1"}}}
	store, now := newTestStore(t, client)

	first, err := store.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("initial get failed: %v", err)
	}
	if client.listCalls != 1 {
		t.Fatalf("expected 1 list call, got %d", client.listCalls)
	}

	*now = now.Add(2 * time.Minute)
	second, err := store.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("cached get failed: %v", err)
	}
	if client.listCalls != 1 {
		t.Fatalf("cache hit should not call the API; calls = %d", client.listCalls)
	}
	if !second.FetchedAt.Equal(first.FetchedAt) {
		t.Fatalf("cache hit changed fetchedAt: %v vs %v", second.FetchedAt, first.FetchedAt)
	}
}

func TestGetExpiredCacheRefreshes(t *testing.T) {
	client := &fakeClient{chats: []graph.ChatSummary{{ID: "c1"}}}
	store, now := newTestStore(t, client)

	if _, err := store.Get(context.Background(), false); err != nil {
		t.Fatalf("initial get failed: %v", err)
	}
	*now = now.Add(DefaultTTL + time.Second)
	if _, err := store.Get(context.Background(), false); err != nil {
		t.Fatalf("expired get failed: %v", err)
	}
	if client.listCalls != 2 {
		t.Fatalf("expected refresh after TTL, calls = %d", client.listCalls)
	}
}

func TestForceRefreshStrictlyAdvancesFetchedAt(t *testing.T) {
	client := &fakeClient{chats: []graph.ChatSummary{{ID: "c1"}}}
	store, _ := newTestStore(t, client)

	first, err := store.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("initial get failed: %v", err)
	}
	// Clock is frozen; the stamp must still move forward.
	second, err := store.Get(context.Background(), true)
	if err != nil {
		t.Fatalf("forced get failed: %v", err)
	}
	if !second.FetchedAt.After(first.FetchedAt) {
		t.Fatalf("forced refresh did not advance fetchedAt: %v vs %v", second.FetchedAt, first.FetchedAt)
	}
	if client.listCalls != 2 {
		t.Fatalf("forced refresh should call the API; calls = %d", client.listCalls)
	}
}

func TestMalformedCacheFileIsAMiss(t *testing.T) {
	client := &fakeClient{chats: []graph.ChatSummary{{ID: "c1"}}}
	store, _ := newTestStore(t, client)

	if err := os.WriteFile(store.Path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt cache: %v", err)
	}
	index, err := store.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("get over corrupt cache failed: %v", err)
	}
	if client.listCalls != 1 {
		t.Fatalf("corrupt cache should refetch; calls = %d", client.listCalls)
	}
	if len(index.Entries) != 1 || index.Entries[0].ID != "c1" {
		t.Fatalf("unexpected entries: %+v", index.Entries)
	}
}

func TestRefreshDeduplicatesByID(t *testing.T) {
	client := &fakeClient{chats: []graph.ChatSummary{
		{ID: "c1", DisplayName: "first"},
		{ID: "c2"},
		{ID: "c1", DisplayName: "dup"},
	}}
	store, _ := newTestStore(t, client)

	index, err := store.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(index.Entries) != 2 {
		t.Fatalf("expected 2 deduped entries, got %d", len(index.Entries))
	}
	if index.Entries[0].DisplayName != "first" {
		t.Fatalf("dedupe should keep the first occurrence, got %q", index.Entries[0].DisplayName)
	}
}

func TestPersistedIndexSurvivesRestart(t *testing.T) {
	client := &fakeClient{chats: []graph.ChatSummary{{ID: "c1"}}}
	store, now := newTestStore(t, client)

	if _, err := store.Get(context.Background(), false); err != nil {
		t.Fatalf("initial get failed: %v", err)
	}

	// A second store over the same path models a new process invocation.
	fresh := NewStore(client, rate.None{}, slogDiscard(), store.Path)
	fresh.Clock = func() time.Time { return now.Add(time.Minute) }
	if _, err := fresh.Get(context.Background(), false); err != nil {
		t.Fatalf("get from persisted index failed: %v", err)
	}
	if client.listCalls != 1 {
		t.Fatalf("persisted index should serve the second run; calls = %d", client.listCalls)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
