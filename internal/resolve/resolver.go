// Package resolve maps user-supplied chat targets onto concrete chats from
// the cached index. It performs no I/O: ambiguous targets come back as an
// ordered candidate list, and interactive callers feed a pick index back in.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nholloway/teams-export/internal/chatcache"
	"github.com/nholloway/teams-export/internal/graph"
)

// InteractiveLimit caps the candidate list shown for an unfiltered
// interactive selection.
const InteractiveLimit = 20

// TargetKind says how the query should be matched.
type TargetKind int

const (
	// TargetUser matches participants of one-to-one chats by name or email.
	TargetUser TargetKind = iota
	// TargetChat matches group chat display names.
	TargetChat
	// TargetInteractive asks for the most recent chats as candidates.
	TargetInteractive
)

// Target is a chat selection request.
type Target struct {
	Kind  TargetKind
	Query string
}

// UserTarget selects one-to-one chats by participant name or email.
func UserTarget(query string) Target { return Target{Kind: TargetUser, Query: query} }

// ChatTarget selects group chats by display-name fragment.
func ChatTarget(query string) Target { return Target{Kind: TargetChat, Query: query} }

// InteractiveTarget requests a candidate list for interactive selection.
func InteractiveTarget() Target { return Target{Kind: TargetInteractive} }

// NotFoundError means no chat matched the target.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no chat matches %q; broaden the search or run with -list to review available chats", e.Query)
}

// Result is the outcome of a resolution. Either Chat is set (unique match)
// or Candidates holds the disambiguation set, ordered by last activity
// descending.
type Result struct {
	Chat       *graph.ChatSummary
	Candidates []graph.ChatSummary
}

// Ambiguous reports whether the caller must pick from Candidates.
func (r Result) Ambiguous() bool { return r.Chat == nil }

// Pick returns the candidate at the zero-based index i.
func (r Result) Pick(i int) (graph.ChatSummary, error) {
	if i < 0 || i >= len(r.Candidates) {
		return graph.ChatSummary{}, fmt.Errorf("pick %d out of range (0-%d)", i, len(r.Candidates)-1)
	}
	return r.Candidates[i], nil
}

// Resolve matches target against the index. Matching is case-insensitive
// substring on names and display names, exact-or-substring on emails.
func Resolve(target Target, index chatcache.Index) (Result, error) {
	if target.Kind == TargetInteractive {
		return Result{Candidates: topByActivity(index.Entries, InteractiveLimit)}, nil
	}

	query := normalize(target.Query)
	if query == "" {
		return Result{}, &NotFoundError{Query: target.Query}
	}
	var matches []graph.ChatSummary
	for _, chat := range index.Entries {
		switch target.Kind {
		case TargetUser:
			if chat.Kind == graph.KindOneToOne && matchesParticipant(chat, query) {
				matches = append(matches, chat)
			}
		case TargetChat:
			if chat.Kind != graph.KindOneToOne && chat.DisplayName != "" && strings.Contains(normalize(chat.DisplayName), query) {
				matches = append(matches, chat)
			}
		}
	}

	switch len(matches) {
	case 0:
		return Result{}, &NotFoundError{Query: target.Query}
	case 1:
		return Result{Chat: &matches[0]}, nil
	}
	sortByActivity(matches)
	return Result{Candidates: matches}, nil
}

// Search filters all chats by a free-form query across display names,
// member names, and member emails. Used by the interactive picker.
func Search(index chatcache.Index, query string) []graph.ChatSummary {
	q := normalize(query)
	if q == "" {
		return topByActivity(index.Entries, 0)
	}
	var matches []graph.ChatSummary
	for _, chat := range index.Entries {
		if strings.Contains(normalize(chat.Title()), q) || matchesParticipant(chat, q) {
			matches = append(matches, chat)
		}
	}
	sortByActivity(matches)
	return matches
}

func matchesParticipant(chat graph.ChatSummary, query string) bool {
	if query == "" {
		return false
	}
	for _, p := range chat.Participants {
		if p.Name != "" && strings.Contains(normalize(p.Name), query) {
			return true
		}
		if p.Email != "" && strings.Contains(strings.ToLower(p.Email), query) {
			return true
		}
	}
	return false
}

// normalize collapses runs of whitespace and lowercases, so "Jane  Doe"
// matches "jane doe".
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func sortByActivity(chats []graph.ChatSummary) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity.After(chats[j].LastActivity)
	})
}

func topByActivity(chats []graph.ChatSummary, limit int) []graph.ChatSummary {
	out := append([]graph.ChatSummary(nil), chats...)
	sortByActivity(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
