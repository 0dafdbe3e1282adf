package resolve

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nholloway/teams-export/internal/chatcache"
	"github.com/nholloway/teams-export/internal/graph"
)

func day(offset int) time.Time {
	return time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func testIndex() chatcache.Index {
	return chatcache.Index{
		Entries: []graph.ChatSummary{
			{
				ID:   "dm-jane",
				Kind: graph.KindOneToOne,
				Participants: []graph.Participant{
					{Name: "Me", Email: "me@example.com"},
					{Name: "Jane Doe", Email: "jane.doe@example.com"},
				},
				LastActivity: day(3),
			},
			{
				ID:   "dm-john",
				Kind: graph.KindOneToOne,
				Participants: []graph.Participant{
					{Name: "Me", Email: "me@example.com"},
					{Name: "John Smith", Email: "john.smith@example.com"},
				},
				LastActivity: day(1),
			},
			{ID: "grp-platform", Kind: graph.KindGroup, DisplayName: "Platform Team", LastActivity: day(2)},
			{ID: "grp-platform-oncall", Kind: graph.KindGroup, DisplayName: "Platform Oncall", LastActivity: day(5)},
			{ID: "grp-platform-arch", Kind: graph.KindGroup, DisplayName: "Platform Architecture", LastActivity: day(4)},
			{ID: "grp-social", Kind: graph.KindGroup, DisplayName: "Social", LastActivity: day(0)},
		},
		FetchedAt: day(6),
	}
}

func TestResolveUserByEmailUniqueMatch(t *testing.T) {
	res, err := Resolve(UserTarget("jane.doe@example.com"), testIndex())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Ambiguous() {
		t.Fatalf("exact email match must not be ambiguous: %+v", res.Candidates)
	}
	if res.Chat.ID != "dm-jane" {
		t.Fatalf("resolved wrong chat: %s", res.Chat.ID)
	}
}

func TestResolveUserByNameFragment(t *testing.T) {
	res, err := Resolve(UserTarget("john"), testIndex())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Ambiguous() || res.Chat.ID != "dm-john" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestResolveChatFragmentReturnsOrderedCandidates(t *testing.T) {
	res, err := Resolve(ChatTarget("platform"), testIndex())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.Ambiguous() {
		t.Fatalf("expected a disambiguation set")
	}
	want := []string{"grp-platform-oncall", "grp-platform-arch", "grp-platform"}
	if len(res.Candidates) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(res.Candidates))
	}
	for i, id := range want {
		if res.Candidates[i].ID != id {
			t.Fatalf("candidate %d = %s, want %s (order must be lastActivity desc)", i, res.Candidates[i].ID, id)
		}
	}
}

func TestResolveNoMatch(t *testing.T) {
	_, err := Resolve(UserTarget("nobody@example.com"), testIndex())
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolveUserIgnoresGroupChats(t *testing.T) {
	// "platform" appears only in group display names, never in 1:1 members.
	_, err := Resolve(UserTarget("platform"), testIndex())
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("user target must only match one-to-one chats, got %v", err)
	}
}

func TestResolveInteractiveTopTwenty(t *testing.T) {
	index := chatcache.Index{}
	for i := 0; i < 30; i++ {
		index.Entries = append(index.Entries, graph.ChatSummary{
			ID:           fmt.Sprintf("chat-%02d", i),
			Kind:         graph.KindGroup,
			DisplayName:  fmt.Sprintf("Chat %02d", i),
			LastActivity: day(i),
		})
	}

	res, err := Resolve(InteractiveTarget(), index)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(res.Candidates) != InteractiveLimit {
		t.Fatalf("expected %d candidates, got %d", InteractiveLimit, len(res.Candidates))
	}
	if res.Candidates[0].ID != "chat-29" {
		t.Fatalf("candidates must start with the most recent chat, got %s", res.Candidates[0].ID)
	}
	for i := 1; i < len(res.Candidates); i++ {
		if res.Candidates[i].LastActivity.After(res.Candidates[i-1].LastActivity) {
			t.Fatalf("candidates out of order at %d", i)
		}
	}
}

func TestPickBounds(t *testing.T) {
	res, err := Resolve(ChatTarget("platform"), testIndex())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	chat, err := res.Pick(1)
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	if chat.ID != "grp-platform-arch" {
		t.Fatalf("picked wrong chat: %s", chat.ID)
	}
	if _, err := res.Pick(len(res.Candidates)); err == nil {
		t.Fatalf("out-of-range pick must fail")
	}
	if _, err := res.Pick(-1); err == nil {
		t.Fatalf("negative pick must fail")
	}
}

func TestSearchSpansNamesAndMembers(t *testing.T) {
	matches := Search(testIndex(), "jane")
	if len(matches) != 1 || matches[0].ID != "dm-jane" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	matches = Search(testIndex(), "platform")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
}
