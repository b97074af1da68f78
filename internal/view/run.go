package view

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"acplog/internal/format"
	"acplog/internal/logging"
	"acplog/internal/model"
	"acplog/internal/parser"
	"acplog/internal/transcript"
)

// Options defines the configurable parameters for rendering a view.
type Options struct {
	Session      string
	Format       string
	Filter       string
	Wrap         int
	MaxEvents    int
	AfterID      int64
	ForceColor   bool
	ForceNoColor bool
	Out          io.Writer
	OutFile      *os.File
	Logger       *slog.Logger
}

// Run replays a persisted session from src according to the provided
// options.
func Run(ctx context.Context, src model.LogSource, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := logging.OrDefault(opts.Logger)

	session, err := src.ResolveSession(ctx, opts.Session)
	if err != nil {
		return err
	}

	formatMode := strings.ToLower(opts.Format)
	if formatMode == "" {
		formatMode = "text"
	}

	if formatMode == "raw" {
		return writeRaw(ctx, src, session, opts)
	}

	filters, err := ParseFilterArg(opts.Filter)
	if err != nil {
		return err
	}

	events, err := Replay(ctx, src, session, opts.AfterID)
	if err != nil {
		return err
	}
	logger.Debug("replayed session", "session", session, "events", len(events))
	events = lastN(applyFilters(events, filters), opts.MaxEvents)

	switch formatMode {
	case "text":
		useColor := resolveColorChoice(opts)
		for idx, ev := range events {
			if idx > 0 {
				fmt.Fprintln(opts.Out) //nolint:errcheck
			}
			printEvent(opts.Out, ev, idx+1, opts.Wrap, useColor)
		}
		return nil

	case "jsonl":
		return format.WriteTranscriptJSONL(opts.Out, events)

	case "chat":
		if len(events) == 0 {
			return nil
		}
		colorEnabled := resolveColorChoice(opts)
		width := determineWidth(opts.OutFile, opts.Wrap)
		lines := renderChatTranscript(events, width, colorEnabled)
		if len(lines) == 0 {
			return nil
		}
		if opts.OutFile != nil && isatty.IsTerminal(opts.OutFile.Fd()) {
			return pipeThroughPager(lines, colorEnabled)
		}
		return writeLines(opts.Out, lines)

	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

// Replay folds every record of session after afterID into a transcript.
func Replay(ctx context.Context, src model.LogSource, session string, afterID int64) ([]model.Event, error) {
	tr := transcript.New()
	err := src.IterateLogs(ctx, session, afterID, func(rec model.LogRecord) error {
		tr.Add(parser.ParseSessionLog(rec))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tr.Events(), nil
}

func writeRaw(ctx context.Context, src model.LogSource, session string, opts Options) error {
	ring := newRecordRing(opts.MaxEvents)
	err := src.IterateLogs(ctx, session, opts.AfterID, func(rec model.LogRecord) error {
		if opts.MaxEvents > 0 {
			ring.push(rec)
			return nil
		}
		_, err := fmt.Fprintln(opts.Out, rec.Message)
		return err
	})
	if err != nil {
		return err
	}
	for _, rec := range ring.slice() {
		if _, err := fmt.Fprintln(opts.Out, rec.Message); err != nil {
			return err
		}
	}
	return nil
}

// ParseFilterArg parses a comma-separated list of filter categories. An
// empty value or "all" disables filtering and yields nil.
func ParseFilterArg(arg string) (map[transcript.Filter]struct{}, error) {
	values := parseCSV(arg)
	if len(values) == 0 || (len(values) == 1 && values[0] == "all") {
		return nil, nil
	}

	lookup := make(map[string]transcript.Filter, len(transcript.Filters))
	for _, f := range transcript.Filters {
		lookup[string(f)] = f
	}

	set := make(map[transcript.Filter]struct{}, len(values))
	for _, token := range values {
		f, ok := lookup[token]
		if !ok {
			return nil, fmt.Errorf("unknown filter %q", token)
		}
		set[f] = struct{}{}
	}
	return set, nil
}

func parseCSV(arg string) []string {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	parts := strings.Split(arg, ",")
	output := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(strings.ToLower(part))
		if token != "" {
			output = append(output, token)
		}
	}
	return output
}

func applyFilters(events []model.Event, filters map[transcript.Filter]struct{}) []model.Event {
	if filters == nil {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := filters[transcript.FilterType(ev)]; ok {
			out = append(out, ev)
		}
	}
	return out
}

func lastN(events []model.Event, n int) []model.Event {
	if n <= 0 || len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

type recordRing struct {
	data   []model.LogRecord
	start  int
	length int
}

func newRecordRing(capacity int) *recordRing {
	if capacity <= 0 {
		return &recordRing{}
	}
	return &recordRing{data: make([]model.LogRecord, capacity)}
}

func (r *recordRing) push(rec model.LogRecord) {
	if len(r.data) == 0 {
		return
	}
	idx := (r.start + r.length) % len(r.data)
	r.data[idx] = rec
	if r.length < len(r.data) {
		r.length++
		return
	}
	r.start = (r.start + 1) % len(r.data)
}

func (r *recordRing) slice() []model.LogRecord {
	if r.length == 0 {
		return nil
	}
	result := make([]model.LogRecord, r.length)
	for i := 0; i < r.length; i++ {
		result[i] = r.data[(r.start+i)%len(r.data)]
	}
	return result
}

func determineWidth(out *os.File, wrap int) int {
	if wrap > 0 {
		return wrap
	}
	if out != nil {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if colsStr := os.Getenv("COLUMNS"); colsStr != "" {
		if v, err := strconv.Atoi(colsStr); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func pipeThroughPager(lines []string, colorEnabled bool) error {
	text := strings.Join(lines, "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	pagerCmd := os.Getenv("PAGER")
	var cmd *exec.Cmd
	if pagerCmd == "" {
		args := []string{"less"}
		if colorEnabled {
			args = append(args, "-R")
		}
		cmd = exec.Command(args[0], args[1:]...) // #nosec G204
	} else {
		cmd = exec.Command("sh", "-c", pagerCmd) // #nosec G204
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create pager pipe: %w", err)
	}
	go func() {
		defer stdin.Close()         //nolint:errcheck
		io.WriteString(stdin, text) //nolint:errcheck
	}()

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run pager: %w", err)
	}

	return nil
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func printEvent(out io.Writer, ev model.Event, index int, wrap int, useColor bool) {
	label := format.Label(ev)
	ts := format.DisplayTime(ev.Time())
	headerPlain := fmt.Sprintf("[#%03d] %s | %s", index, label, ts)

	indexText := fmt.Sprintf("#%03d", index)
	labelText := label
	tsText := ts
	separator := "|"

	if useColor {
		indexText = colorize(true, ansiBoldWhite, indexText)
		labelText = colorize(true, kindColor(ev), labelText)
		tsText = colorize(true, ansiTimestamp, tsText)
		separator = colorize(true, ansiSeparator, "|")
	}

	fmt.Fprintf(out, "[%s] %s %s %s\n", indexText, labelText, separator, tsText) //nolint:errcheck
	fmt.Fprintln(out, strings.Repeat("-", len(headerPlain)))                     //nolint:errcheck

	linePrefix := "| "
	emptyPrefix := "|"
	if useColor {
		separatorColor := colorize(true, ansiSeparator, "|")
		linePrefix = separatorColor + " "
		emptyPrefix = separatorColor
	}

	lines := format.RenderEventLines(ev, wrap)
	if len(lines) == 0 {
		fmt.Fprintf(out, "%s(no content)\n", linePrefix) //nolint:errcheck
		return
	}
	for _, line := range lines {
		if line == "" {
			fmt.Fprintln(out, emptyPrefix) //nolint:errcheck
			continue
		}
		fmt.Fprintf(out, "%s%s\n", linePrefix, line) //nolint:errcheck
	}
}

const (
	ansiReset     = "\x1b[0m"
	ansiBoldWhite = "\x1b[1;97m"
	ansiTimestamp = "\x1b[38;5;245m"
	ansiSeparator = "\x1b[38;5;240m"
	ansiAgent     = "\x1b[38;5;44m"
	ansiUser      = "\x1b[38;5;220m"
	ansiTool      = "\x1b[38;5;207m"
	ansiThought   = "\x1b[38;5;141m"
	ansiWarn      = "\x1b[38;5;208m"
	ansiDone      = "\x1b[38;5;114m"
)

func colorize(enabled bool, code string, text string) string {
	if !enabled {
		return text
	}
	return code + text + ansiReset
}

func kindColor(ev model.Event) string {
	switch e := ev.(type) {
	case model.MessageEvent:
		if e.Role == model.RoleUser {
			return ansiUser
		}
		return ansiAgent
	case model.ThoughtEvent:
		return ansiThought
	case model.ToolCallEvent, model.PermissionRequestEvent:
		return ansiTool
	case model.PlanEvent, model.CompleteEvent:
		return ansiDone
	case model.LogEvent:
		if e.Level == "warn" || e.Level == "error" {
			return ansiWarn
		}
		return ansiSeparator
	default:
		return ansiSeparator
	}
}

func resolveColorChoice(opts Options) bool {
	return UseColor(opts.Out, opts.ForceColor, opts.ForceNoColor)
}

// UseColor reports whether ANSI colors should be written to out. Forcing
// wins; otherwise colors need a terminal and an unset NO_COLOR.
func UseColor(out io.Writer, forceColor, forceNoColor bool) bool {
	if forceColor {
		return true
	}
	if forceNoColor {
		return false
	}
	return shouldUseColorAuto(out)
}

func shouldUseColorAuto(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
