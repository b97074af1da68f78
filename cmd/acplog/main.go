// Package main provides the acplog CLI for browsing and following ACP agent
// session logs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"acplog/internal/config"
	"acplog/internal/format"
	"acplog/internal/live"
	"acplog/internal/logging"
	"acplog/internal/model"
	"acplog/internal/store"
	"acplog/internal/store/jsonl"
	"acplog/internal/store/sqlite"
	"acplog/internal/transcript"
	"acplog/internal/view"
)

var version = "dev"

// cli carries the settings shared by every subcommand. Settings are resolved
// once in the root's PersistentPreRunE.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        config.Config
	logger     *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "acplog: %v\n", err) //nolint:errcheck
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:           "acplog",
		Short:         "Browse, replay, and follow ACP agent session logs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.String("source", "", "log source: 'jsonl' or 'sqlite' (env: ACPLOG_SOURCE, default: jsonl)")
	flags.String("sessions-dir", "", "directory of <session>.jsonl files (env: ACPLOG_SESSIONS_DIR)")
	flags.String("db", "", "SQLite database path (env: ACPLOG_DB_PATH)")
	flags.String("log-level", "", "diagnostic log level: debug, info, warn, error (env: ACPLOG_LOG_LEVEL)")
	flags.StringVar(&c.configFile, "config", "", "config file (default: acplog.yaml in ~/.acplog or the working directory)")

	for key, name := range map[string]string{
		config.KeySource:      "source",
		config.KeySessionsDir: "sessions-dir",
		config.KeyDB:          "db",
		config.KeyLogLevel:    "log-level",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(newListCmd(c))
	root.AddCommand(newViewCmd(c))
	root.AddCommand(newInfoCmd(c))
	root.AddCommand(newTailCmd(c))
	return root
}

func (c *cli) load(stderr io.Writer) error {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// openSource opens the configured log source.
func (c *cli) openSource() (model.LogSource, error) {
	src, err := model.NewSource(c.cfg.Source, c.cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", c.cfg.Source, err)
	}
	if js, ok := src.(*jsonl.Source); ok {
		js.Logger = c.logger
	}
	return src, nil
}

func newListCmd(c *cli) *cobra.Command {
	var (
		afterStr     string
		beforeStr    string
		limit        int
		formatFlag   string
		noHeader     bool
		summaryWidth int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List session summaries in reverse chronological order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			after, err := parseTimeFlag("--after", afterStr)
			if err != nil {
				return err
			}
			before, err := parseTimeFlag("--before", beforeStr)
			if err != nil {
				return err
			}

			src, err := c.openSource()
			if err != nil {
				return err
			}
			defer src.Close() //nolint:errcheck

			summaries, err := src.ListSessions(cmd.Context())
			if err != nil {
				return err
			}

			filtered := make([]model.SessionSummary, 0, len(summaries))
			for _, s := range summaries {
				if after != nil && (s.StartedAt.IsZero() || s.StartedAt.Before(*after)) {
					continue
				}
				if before != nil && (s.StartedAt.IsZero() || s.StartedAt.After(*before)) {
					continue
				}
				s.Summary = clipSummary(collapseWhitespace(s.Summary), summaryWidth)
				filtered = append(filtered, s)
				if limit > 0 && len(filtered) >= limit {
					break
				}
			}

			return format.WriteSummaries(cmd.OutOrStdout(), filtered, !noHeader, strings.ToLower(formatFlag))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&afterStr, "after", "", "include sessions starting on/after the given RFC3339 timestamp")
	flags.StringVar(&beforeStr, "before", "", "include sessions starting on/before the given RFC3339 timestamp")
	flags.IntVar(&limit, "limit", 0, "limit number of sessions returned (0 means no limit)")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row for table and plain output")
	flags.IntVar(&summaryWidth, "summary-width", store.MaxSummary, "maximum characters included in the summary column")

	return cmd
}

func newViewCmd(c *cli) *cobra.Command {
	var (
		filterArg    string
		wrap         int
		maxEvents    int
		afterID      int64
		formatFlag   string
		forceColor   bool
		forceNoColor bool
	)

	cmd := &cobra.Command{
		Use:   "view <session-id-or-path>",
		Short: "Replay a persisted session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}

			src, err := c.openSource()
			if err != nil {
				return err
			}
			defer src.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			outFile, _ := out.(*os.File)
			return view.Run(cmd.Context(), src, view.Options{
				Session:      args[0],
				Format:       formatFlag,
				Filter:       filterArg,
				Wrap:         wrap,
				MaxEvents:    maxEvents,
				AfterID:      afterID,
				ForceColor:   forceColor,
				ForceNoColor: forceNoColor,
				Out:          out,
				OutFile:      outFile,
				Logger:       c.logger,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&filterArg, "filter", "F", "", "comma-separated categories to show: messages, thoughts, tools, plan, or all")
	flags.IntVar(&wrap, "wrap", 0, "wrap message body at the given column width")
	flags.IntVar(&maxEvents, "max", 0, "show only the most recent N events (0 means no limit)")
	flags.Int64Var(&afterID, "after-id", 0, "replay only records with an id greater than this cursor")
	flags.StringVar(&formatFlag, "format", "text", "output format: text, chat, jsonl, or raw")
	flags.BoolVar(&forceColor, "color", false, "force-enable ANSI colors even when stdout is not a TTY")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable ANSI colors regardless of terminal detection")

	return cmd
}

type infoPayload struct {
	SessionID       string                 `json:"session_id"`
	Path            string                 `json:"path,omitempty"`
	Source          string                 `json:"source"`
	StartedAt       string                 `json:"started_at"`
	RecordCount     int                    `json:"record_count"`
	EventCount      int                    `json:"event_count"`
	DurationSeconds int                    `json:"duration_seconds"`
	DurationDisplay string                 `json:"duration_display"`
	Summary         string                 `json:"summary"`
	ActiveTool      *transcript.ActiveTool `json:"active_tool"`
	PlanProgress    *transcript.Progress   `json:"plan_progress"`
	Filters         []transcript.Filter    `json:"filters"`

	plan   *model.PlanEvent
	events []model.Event
}

func newInfoCmd(c *cli) *cobra.Command {
	var (
		formatFlag  string
		summaryMode string
	)

	cmd := &cobra.Command{
		Use:   "info <session-id-or-path>",
		Short: "Show session metadata, plan progress, and tool calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summaryMode = strings.ToLower(summaryMode)
			switch summaryMode {
			case "", "clip", "full":
			default:
				return fmt.Errorf("invalid --summary value: %s", summaryMode)
			}

			src, err := c.openSource()
			if err != nil {
				return err
			}
			defer src.Close() //nolint:errcheck

			payload, err := collectInfo(cmd.Context(), src, c.cfg.Source, args[0])
			if err != nil {
				return err
			}

			switch strings.ToLower(formatFlag) {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			case "text":
				summarySnippet := collapseWhitespace(payload.Summary)
				if summaryMode != "full" {
					summarySnippet = clipSummary(summarySnippet, 160)
				}
				return renderInfoText(cmd.OutOrStdout(), payload, summarySnippet)
			default:
				return fmt.Errorf("unsupported format: %s", formatFlag)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "text", "output format: text or json")
	flags.StringVar(&summaryMode, "summary", "clip", "summary display: clip or full")

	return cmd
}

// collectInfo reads session once, accumulating the summary and the folded
// transcript side by side.
func collectInfo(ctx context.Context, src model.LogSource, kind model.SourceKind, arg string) (infoPayload, error) {
	session, err := src.ResolveSession(ctx, arg)
	if err != nil {
		return infoPayload{}, err
	}

	id, path := session, ""
	if kind == model.SourceJSONL {
		id, path = strings.TrimSuffix(filepath.Base(session), ".jsonl"), session
	}

	summarizer := store.NewSummarizer(id, path)
	summarizer.MaxSummary = 0
	events, err := view.Replay(ctx, teeSource{src, summarizer}, session, 0)
	if err != nil {
		return infoPayload{}, err
	}
	summary := summarizer.Summary()

	payload := infoPayload{
		SessionID:       summary.ID,
		Path:            summary.Path,
		Source:          string(kind),
		StartedAt:       formatStartedAt(summary.StartedAt),
		RecordCount:     summary.RecordCount,
		EventCount:      len(events),
		DurationSeconds: summary.DurationSeconds,
		DurationDisplay: format.FormatDuration(summary.DurationSeconds),
		Summary:         summary.Summary,
		Filters:         transcript.AvailableFilters(events),
		events:          events,
	}
	if payload.Filters == nil {
		payload.Filters = []transcript.Filter{}
	}
	if active, ok := transcript.ActiveToolCall(events); ok {
		payload.ActiveTool = &active
	}
	if progress, ok := transcript.PlanProgress(events); ok {
		payload.PlanProgress = &progress
	}
	if plan, ok := transcript.CurrentPlan(events); ok {
		payload.plan = &plan
	}
	return payload, nil
}

// teeSource hands every iterated record to a summarizer as well.
type teeSource struct {
	model.LogSource
	summarizer *store.Summarizer
}

func (t teeSource) IterateLogs(ctx context.Context, session string, afterID int64, fn func(model.LogRecord) error) error {
	return t.LogSource.IterateLogs(ctx, session, afterID, func(rec model.LogRecord) error {
		t.summarizer.Add(rec)
		return fn(rec)
	})
}

func newTailCmd(c *cli) *cobra.Command {
	var (
		headers      []string
		recordAs     string
		recordNew    bool
		forceColor   bool
		forceNoColor bool
	)

	cmd := &cobra.Command{
		Use:   "tail [ws-url]",
		Short: "Follow a live session over WebSocket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}
			if recordNew {
				if recordAs != "" {
					return errors.New("--record and --record-new cannot be used together")
				}
				recordAs = "live-" + ulid.Make().String()
				fmt.Fprintf(cmd.ErrOrStderr(), "recording as %s\n", recordAs) //nolint:errcheck
			}
			url := c.cfg.URL
			if len(args) == 1 {
				url = args[0]
			}
			if url == "" {
				return errors.New("a WebSocket URL is required (argument or ACPLOG_URL)")
			}
			header, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := live.Dial(ctx, url, header, c.logger)
			if err != nil {
				return err
			}
			defer client.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			streamer := view.NewStreamer(out, view.UseColor(out, forceColor, forceNoColor))
			handler := func(f live.Frame) error {
				if !f.OK {
					return nil
				}
				return streamer.Handle(f.Event)
			}

			if recordAs != "" {
				db, err := sqlite.Open(c.cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck
				c.logger.Info("recording live session", "session", recordAs, "db", c.cfg.DBPath)
				handler = live.Recorder(ctx, db, recordAs, handler)
			}

			streamErr := client.Stream(ctx, handler)
			if err := streamer.Finish(); err != nil && streamErr == nil {
				streamErr = err
			}
			if errors.Is(streamErr, context.Canceled) {
				return nil
			}
			return streamErr
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&headers, "header", nil, "extra handshake header as key=value (repeatable)")
	flags.StringVar(&recordAs, "record", "", "persist every frame under this session id in the SQLite store")
	flags.BoolVar(&recordNew, "record-new", false, "persist every frame under a freshly generated session id")
	flags.BoolVar(&forceColor, "color", false, "force-enable ANSI colors even when stdout is not a TTY")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable ANSI colors regardless of terminal detection")

	return cmd
}

func parseHeaders(pairs []string) (http.Header, error) {
	header := http.Header{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --header value %q: want key=value", pair)
		}
		header.Add(key, value)
	}
	return header, nil
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", name, err)
	}
	return &t, nil
}

func formatStartedAt(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func renderInfoText(out io.Writer, payload infoPayload, summarySnippet string) error {
	const labelWidth = 14
	writeKV(out, labelWidth, "Session ID", payload.SessionID)
	writeKV(out, labelWidth, "Source", payload.Source)
	if payload.Path != "" {
		writeKV(out, labelWidth, "Path", payload.Path)
	}
	writeKV(out, labelWidth, "Started At", valueOrDash(payload.StartedAt))
	writeKV(out, labelWidth, "Duration", payload.DurationDisplay)
	writeKV(out, labelWidth, "Records", fmt.Sprintf("%d", payload.RecordCount))
	writeKV(out, labelWidth, "Events", fmt.Sprintf("%d", payload.EventCount))
	writeKV(out, labelWidth, "Summary", summarySnippet)

	active := "-"
	if payload.ActiveTool != nil {
		active = fmt.Sprintf("%s (%s)", payload.ActiveTool.Tool, payload.ActiveTool.ID)
	}
	writeKV(out, labelWidth, "Active Tool", active)

	progress := "-"
	if payload.PlanProgress != nil {
		progress = fmt.Sprintf("%d/%d", payload.PlanProgress.Completed, payload.PlanProgress.Total)
	}
	writeKV(out, labelWidth, "Plan", progress)

	filters := make([]string, len(payload.Filters))
	for i, f := range payload.Filters {
		filters[i] = string(f)
	}
	writeKV(out, labelWidth, "Filters", valueOrDash(strings.Join(filters, ", ")))

	if payload.plan != nil && len(payload.plan.Entries) > 0 {
		fmt.Fprintln(out) //nolint:errcheck
		if err := format.WritePlan(out, *payload.plan); err != nil {
			return err
		}
	}
	for _, ev := range payload.events {
		if ev.Kind() == model.KindToolCall {
			fmt.Fprintln(out) //nolint:errcheck
			return format.WriteToolCalls(out, payload.events)
		}
	}
	return nil
}

func writeKV(out io.Writer, width int, label string, value string) {
	fmt.Fprintf(out, "%-*s: %s\n", width, label, value) //nolint:errcheck
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(text)), " ")
}

func clipSummary(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen == 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}
