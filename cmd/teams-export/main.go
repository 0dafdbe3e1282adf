package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/nholloway/teams-export/internal/chatcache"
	"github.com/nholloway/teams-export/internal/config"
	"github.com/nholloway/teams-export/internal/dates"
	"github.com/nholloway/teams-export/internal/export"
	"github.com/nholloway/teams-export/internal/fetch"
	"github.com/nholloway/teams-export/internal/graph"
	"github.com/nholloway/teams-export/internal/interactive"
	"github.com/nholloway/teams-export/internal/rate"
	"github.com/nholloway/teams-export/internal/render"
	"github.com/nholloway/teams-export/internal/resolve"
	"github.com/nholloway/teams-export/internal/runtime"
)

type exportConfig struct {
	configPath   string
	user         string
	chat         string
	fromDate     string
	toDate       string
	format       string
	outputDir    string
	timezone     string
	list         bool
	all          bool
	forceLogin   bool
	forceRefresh bool
	concurrency  int
	rps          int
	timeout      time.Duration
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		if errors.Is(err, interactive.ErrAborted) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(1)
		}
		runtime.DefaultLogger().Error("teams-export failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() exportConfig {
	configPath := flag.String("config", "", "config file path (default ~/.teams-export/config.json)")
	user := flag.String("user", "", "participant display name or email for 1:1 chats")
	chat := flag.String("chat", "", "chat display name for group chats")
	fromDate := flag.String("from", "", `start date (YYYY-MM-DD, "today", "yesterday", "last week", "last month")`)
	toDate := flag.String("to", "", "end date (YYYY-MM-DD or keyword)")
	format := flag.String("format", "json", "export format: json, csv, markdown, or text")
	outputDir := flag.String("output-dir", "exports", "directory to save exported files")
	timezone := flag.String("timezone", "UTC", "IANA time zone for day boundaries")
	list := flag.Bool("list", false, "list accessible chats and exit")
	all := flag.Bool("all", false, "export all chats within the date range")
	forceLogin := flag.Bool("force-login", false, "skip cached credentials and redo the device login flow")
	forceRefresh := flag.Bool("force-refresh", false, "refresh the chat list cache before resolving")
	concurrency := flag.Int("concurrency", export.MaxConcurrency, "simultaneous chat exports for -all (max 3)")
	rps := flag.Int("rps", 4, "max Graph requests per second")
	timeout := flag.Duration("timeout", runtime.DefaultRequestTimeout, "per-request timeout")
	flag.Parse()

	return exportConfig{
		configPath:   *configPath,
		user:         *user,
		chat:         *chat,
		fromDate:     *fromDate,
		toDate:       *toDate,
		format:       *format,
		outputDir:    *outputDir,
		timezone:     *timezone,
		list:         *list,
		all:          *all,
		forceLogin:   *forceLogin,
		forceRefresh: *forceRefresh,
		concurrency:  *concurrency,
		rps:          *rps,
		timeout:      *timeout,
	}
}

func run(cfg exportConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	appCfg, err := config.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loc := time.UTC
	if cfg.timezone != "" {
		if loc, err = time.LoadLocation(cfg.timezone); err != nil {
			return fmt.Errorf("load time zone %q: %w", cfg.timezone, err)
		}
	}
	window, err := dates.Resolve(cfg.fromDate, cfg.toDate, loc, time.Now)
	if err != nil {
		return fmt.Errorf("resolve date range: %w", err)
	}

	format, err := render.ParseFormat(cfg.format)
	if err != nil {
		return err
	}
	renderer, err := render.New(format)
	if err != nil {
		return err
	}

	tokens, err := runtime.NewTokenProvider(appCfg, logger)
	if err != nil {
		return err
	}
	tokens.ForceLogin = cfg.forceLogin
	client := runtime.NewGraphClient(tokens, runtime.WithTimeout(cfg.timeout))

	var limiter rate.Limiter = rate.None{}
	if cfg.rps > 0 {
		bucket := rate.NewTokenBucket(cfg.rps)
		defer bucket.Stop()
		limiter = bucket
	}

	store := chatcache.NewStore(client, limiter, logger, appCfg.ChatCachePath)
	index, err := store.Get(ctx, cfg.forceRefresh)
	if err != nil {
		return err
	}

	if cfg.list {
		printChatList(index.Entries)
		return nil
	}

	targets, err := selectTargets(cfg, index)
	if err != nil {
		return err
	}

	fetcher := fetch.NewFetcher(client, limiter, logger)
	coord := export.NewCoordinator(fetcher, renderer, logger, cfg.outputDir)
	coord.Concurrency = cfg.concurrency
	if len(targets) > 1 {
		coord.OnProgress = func(completed, total int, title string) {
			fmt.Printf("[%d/%d] %s\n", completed, total, title)
		}
	}

	outcomes := coord.ExportAll(ctx, targets, window)
	printSummary(outcomes, window)
	return export.Summarize(outcomes)
}

// selectTargets turns the CLI target flags into concrete chats, prompting
// interactively when the flags were ambiguous or absent.
func selectTargets(cfg exportConfig, index chatcache.Index) ([]graph.ChatSummary, error) {
	if cfg.all {
		return index.Entries, nil
	}

	picker := interactive.NewPicker(os.Stdin, os.Stdout)

	var target resolve.Target
	switch {
	case cfg.user != "":
		target = resolve.UserTarget(cfg.user)
	case cfg.chat != "":
		target = resolve.ChatTarget(cfg.chat)
	default:
		chat, err := picker.SelectChat(index)
		if err != nil {
			return nil, err
		}
		return []graph.ChatSummary{chat}, nil
	}

	res, err := resolve.Resolve(target, index)
	if err != nil {
		return nil, err
	}
	chat, err := picker.PickFrom(res)
	if err != nil {
		return nil, err
	}
	return []graph.ChatSummary{chat}, nil
}

func printChatList(chats []graph.ChatSummary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Chat ID", "Type", "Title", "Participants"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, chat := range chats {
		var participants []string
		for _, p := range chat.Participants {
			if p.Name != "" {
				participants = append(participants, p.Name)
			} else if p.Email != "" {
				participants = append(participants, p.Email)
			}
		}
		table.Append([]string{chat.ID, chat.KindLabel(), chat.Title(), joinLimited(participants, 4)})
	}
	table.Render()
}

func joinLimited(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s, … (%d total)", strings.Join(items[:limit], ", "), len(items))
}

func printSummary(outcomes []export.Outcome, window dates.Window) {
	total := 0
	for _, out := range outcomes {
		switch out.Status {
		case export.StatusSuccess:
			fmt.Printf("Exported %d messages from %s; saved to %s\n", out.Messages, out.Title, out.OutputPath)
		case export.StatusPartial:
			fmt.Printf("Exported %d messages from %s (incomplete: %v); saved to %s\n", out.Messages, out.Title, out.Err, out.OutputPath)
		case export.StatusFailed:
			fmt.Printf("Failed to export %s: %v\n", out.Title, out.Err)
		}
		total += out.Messages
	}
	fmt.Printf("Export complete. Total messages: %d. Date range: %s\n", total, window)
}
