package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/juju/clock"

	"traceview/internal/app"
	"traceview/internal/client"
	"traceview/internal/config"
	"traceview/internal/live"
	"traceview/internal/logging"
	"traceview/internal/store"
	"traceview/internal/stream"
	"traceview/internal/types"
)

const usageText = `traceview is a live terminal dashboard for an LLM trace server.

Usage:
  traceview <command> [flags]

Commands:
  ui       run the dashboard
  traces   list recent traces
  tail     follow the flat feed on stdout
  config   print the resolved configuration
  help     show help

Flags:
  -h, --help   show help

Examples:
  traceview ui
  traceview traces --limit 20
  traceview tail
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "ui":
		os.Exit(runUI(args))
	case "traces":
		os.Exit(runTraces(args))
	case "tail":
		os.Exit(runTail(args))
	case "config":
		os.Exit(runConfig(args))
	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printUsage()
		os.Exit(2)
	}
}

func loadSetup() (config.Settings, *client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Settings{}, nil, err
	}
	api := client.New(cfg.ServerBaseURL(), cfg.Server.APIKey, cfg.Server.ProjectID)
	return cfg, api, nil
}

func runUI(args []string) int {
	fs := flag.NewFlagSet("ui", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, api, err := loadSetup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	// The terminal owns stderr while the UI runs; keep the logger quiet
	// unless something is truly wrong.
	log := logging.New(os.Stderr, logging.Error)

	statePath, err := config.StateDBPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "state path:", err)
		return 1
	}
	stateStore, err := store.NewUIStateStore(statePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "state store:", err)
		return 1
	}
	defer stateStore.Close()

	session := app.StartLive(cfg, api, log)
	defer session.Close()

	model := app.NewModel(cfg, session, stateStore, log)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "ui:", err)
		return 1
	}
	return 0
}

func runTraces(args []string) int {
	fs := flag.NewFlagSet("traces", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum traces to list")
	since := fs.Duration("since", time.Hour, "look-back window")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	_, api, err := loadSetup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	traces, err := api.ListTracesWithRetry(ctx, time.Now().Add(-*since), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list traces:", err)
		return 1
	}
	for _, trace := range traces {
		name := trace.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("%s  %s  spans=%d  %s\n",
			trace.TraceID, trace.StartTime.Local().Format(time.RFC3339), trace.SpanCount, name)
	}
	return 0
}

func runTail(args []string) int {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, api, err := loadSetup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	log := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel()))

	feed := live.NewFeedTail(api, clock.WallClock, log, live.FeedTailOptions{
		Debounce: cfg.Live.DebounceWindow(),
		Throttle: cfg.Live.ThrottleInterval(),
		Window:   cfg.Live.LateArrivalWindow(),
		MaxItems: cfg.Live.BufferLimit(),
	})
	defer feed.Close()

	header := http.Header{}
	if api.APIKey() != "" {
		header.Set("x-api-key", api.APIKey())
	}
	conn := stream.Subscribe(api.StreamURL("", ""), stream.Handlers{
		OnSpan: func(types.SpanEvent) { feed.Notify() },
		OnOpen: func() { log.Info("stream live") },
		OnError: func(err error) {
			fmt.Fprintln(os.Stderr, "stream:", err)
		},
	}, stream.Options{
		BaseDelay:         cfg.Live.ReconnectBaseDelay(),
		MaxBackoff:        cfg.Live.MaxBackoff(),
		ReopenDelay:       cfg.Live.TerminateReopenDelay(),
		InactivityTimeout: cfg.Live.InactivityTimeout(),
		MaxAttempts:       cfg.Live.MaxAttempts(),
		Header:            header,
	}, nil, nil, log)
	defer conn.Unsubscribe()

	// Prime the watermark with whatever is already flowing.
	feed.Notify()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	// The buffer can splice a late arrival into the middle, so track what
	// was already written by identity instead of by index.
	printed := make(map[types.FeedItemKey]struct{})
	for {
		select {
		case <-signals:
			return 0
		case <-ticker.C:
			for _, item := range feed.Items() {
				if _, done := printed[item.Key()]; done {
					continue
				}
				printed[item.Key()] = struct{}{}
				fmt.Printf("%s  %-9s  %s\n",
					item.Timestamp.Local().Format("15:04:05"), item.Role, item.Content)
			}
		}
	}
}

func runConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path, err := config.SettingsPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config path:", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	fmt.Println("path:", path)
	fmt.Println("server:", cfg.ServerBaseURL())
	fmt.Println("project:", cfg.Server.ProjectID)
	fmt.Println("log level:", cfg.LogLevel())
	fmt.Println("debounce:", cfg.Live.DebounceWindow())
	fmt.Println("throttle:", cfg.Live.ThrottleInterval())
	fmt.Println("inactivity timeout:", cfg.Live.InactivityTimeout())
	fmt.Println("max buffer blocks:", cfg.Live.BufferLimit())
	return 0
}
