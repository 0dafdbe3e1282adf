// Package interactive prompts the user to choose a chat when the target is
// ambiguous or unspecified. The resolver supplies candidate lists; this
// package only owns the terminal back-and-forth.
package interactive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/nholloway/teams-export/internal/chatcache"
	"github.com/nholloway/teams-export/internal/graph"
	"github.com/nholloway/teams-export/internal/resolve"
)

// ErrAborted means the user cancelled the selection.
var ErrAborted = errors.New("selection aborted")

const nameDisplayLimit = 50

// Picker reads selections from In and writes menus to Out.
type Picker struct {
	Out io.Writer

	scanner *bufio.Scanner
}

// NewPicker wires a picker to the given streams, usually stdin/stdout.
func NewPicker(in io.Reader, out io.Writer) *Picker {
	return &Picker{Out: out, scanner: bufio.NewScanner(in)}
}

// SelectChat runs the full interactive flow against the chat index: show
// the most recent chats, accept a number, a search, or a quit.
func (p *Picker) SelectChat(index chatcache.Index) (graph.ChatSummary, error) {
	res, err := resolve.Resolve(resolve.InteractiveTarget(), index)
	if err != nil {
		return graph.ChatSummary{}, err
	}
	candidates := res.Candidates
	if len(candidates) == 0 {
		return graph.ChatSummary{}, errors.New("no chats available to select")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	for {
		fmt.Fprintln(p.Out, "\nSelect a chat:")
		if len(index.Entries) > len(candidates) {
			fmt.Fprintf(p.Out, "(showing the %d most recent of %d chats; 's' searches all)\n", len(candidates), len(index.Entries))
		}
		p.printTable(candidates)

		line, err := p.prompt(fmt.Sprintf("Enter chat number (1-%d), 's' to search, or 'q' to quit: ", len(candidates)))
		if err != nil {
			return graph.ChatSummary{}, err
		}
		switch strings.ToLower(line) {
		case "":
			continue
		case "q", "quit", "exit":
			return graph.ChatSummary{}, ErrAborted
		case "s", "search":
			chat, ok, err := p.search(index)
			if err != nil {
				return graph.ChatSummary{}, err
			}
			if ok {
				return chat, nil
			}
			continue
		}
		if chat, ok := pickNumber(line, candidates); ok {
			p.confirm(chat)
			return chat, nil
		}
		fmt.Fprintf(p.Out, "Please enter a number between 1 and %d.\n", len(candidates))
	}
}

// PickFrom asks the user to disambiguate an already-resolved candidate set.
func (p *Picker) PickFrom(res resolve.Result) (graph.ChatSummary, error) {
	if !res.Ambiguous() {
		return *res.Chat, nil
	}
	fmt.Fprintf(p.Out, "\nMultiple chats matched; pick one:\n")
	p.printTable(res.Candidates)
	for {
		line, err := p.prompt(fmt.Sprintf("Enter chat number (1-%d) or 'q' to quit: ", len(res.Candidates)))
		if err != nil {
			return graph.ChatSummary{}, err
		}
		if l := strings.ToLower(line); l == "q" || l == "quit" {
			return graph.ChatSummary{}, ErrAborted
		}
		if i, err := strconv.Atoi(line); err == nil {
			if chat, err := res.Pick(i - 1); err == nil {
				p.confirm(chat)
				return chat, nil
			}
		}
		fmt.Fprintf(p.Out, "Please enter a number between 1 and %d.\n", len(res.Candidates))
	}
}

func (p *Picker) search(index chatcache.Index) (graph.ChatSummary, bool, error) {
	query, err := p.prompt("Enter search term (chat name or participant): ")
	if err != nil {
		return graph.ChatSummary{}, false, err
	}
	if query == "" {
		return graph.ChatSummary{}, false, nil
	}
	results := resolve.Search(index, query)
	switch len(results) {
	case 0:
		fmt.Fprintf(p.Out, "No chats found matching %q.\n", query)
		return graph.ChatSummary{}, false, nil
	case 1:
		p.confirm(results[0])
		return results[0], true, nil
	}
	if len(results) > resolve.InteractiveLimit {
		fmt.Fprintf(p.Out, "Found %d matching chats, showing the %d most recent:\n", len(results), resolve.InteractiveLimit)
		results = results[:resolve.InteractiveLimit]
	} else {
		fmt.Fprintf(p.Out, "Found %d matching chats:\n", len(results))
	}
	p.printTable(results)
	line, err := p.prompt(fmt.Sprintf("Enter chat number (1-%d): ", len(results)))
	if err != nil {
		return graph.ChatSummary{}, false, err
	}
	if chat, ok := pickNumber(line, results); ok {
		p.confirm(chat)
		return chat, true, nil
	}
	return graph.ChatSummary{}, false, nil
}

func (p *Picker) printTable(chats []graph.ChatSummary) {
	table := tablewriter.NewWriter(p.Out)
	table.SetHeader([]string{"#", "Type", "Chat", "Last Activity"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, chat := range chats {
		name := chat.Title()
		if r := []rune(name); len(r) > nameDisplayLimit {
			name = string(r[:nameDisplayLimit-3]) + "..."
		}
		activity := "n/a"
		if !chat.LastActivity.IsZero() {
			activity = chat.LastActivity.Format("2006-01-02 15:04")
		}
		table.Append([]string{strconv.Itoa(i + 1), chat.KindLabel(), name, activity})
	}
	table.Render()
}

func (p *Picker) confirm(chat graph.ChatSummary) {
	fmt.Fprintf(p.Out, "Selected: %s\n", chat.Title())
}

func (p *Picker) prompt(msg string) (string, error) {
	fmt.Fprint(p.Out, msg)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func pickNumber(line string, chats []graph.ChatSummary) (graph.ChatSummary, bool) {
	i, err := strconv.Atoi(line)
	if err != nil || i < 1 || i > len(chats) {
		return graph.ChatSummary{}, false
	}
	return chats[i-1], true
}
