package view

import (
	"fmt"
	"io"
	"strings"

	"acplog/internal/format"
	"acplog/internal/model"
	"acplog/internal/transcript"
)

// resultPreview bounds the tool output shown inline by the Streamer.
const resultPreview = 120

// Streamer prints a live session incrementally. Message and thought chunks
// are written as they arrive; everything else gets one line per change.
// It folds every event into its own transcript.
type Streamer struct {
	out   io.Writer
	color bool
	tr    *transcript.Transcript
	open  bool
	err   error
}

// NewStreamer returns a Streamer writing to out.
func NewStreamer(out io.Writer, color bool) *Streamer {
	return &Streamer{out: out, color: color, tr: transcript.New()}
}

// Transcript returns the folded events seen so far.
func (s *Streamer) Transcript() *transcript.Transcript {
	return s.tr
}

// Handle prints ev and folds it into the transcript. It returns the first
// write error encountered.
func (s *Streamer) Handle(ev model.Event) error {
	if ev == nil {
		return s.err
	}
	last, _ := s.tr.Last()

	switch e := ev.(type) {
	case model.MessageEvent:
		prev, ok := last.(model.MessageEvent)
		s.chunk(ok && !prev.Done && prev.Role == e.Role, string(e.Role)+"> ", kindColor(e), e.Content, e.Done)
	case model.ThoughtEvent:
		prev, ok := last.(model.ThoughtEvent)
		s.chunk(ok && !prev.Done, "thinking> ", ansiThought, e.Content, e.Done)
	case model.ToolCallEvent:
		s.toolCall(e)
	case model.PlanEvent:
		done := 0
		for _, entry := range e.Entries {
			if entry.Status == model.PlanDone {
				done++
			}
		}
		s.line(ansiDone, fmt.Sprintf("plan %d/%d", done, len(e.Entries)))
		for _, entry := range e.Entries {
			s.printf("  %s %s\n", format.PlanMarker(entry.Status), entry.Title)
		}
	case model.PermissionRequestEvent:
		text := fmt.Sprintf("? permission %s", toolLabel(e.Tool, e.ID))
		if len(e.Options) > 0 {
			text += " [" + strings.Join(e.Options, ", ") + "]"
		}
		s.line(ansiTool, text)
	case model.ModeUpdateEvent:
		s.line(ansiSeparator, "mode → "+e.Mode)
	case model.LogEvent:
		s.line(kindColor(e), fmt.Sprintf("[%s] %s", e.Level, e.Message))
	case model.CompleteEvent:
		s.line(ansiDone, fmt.Sprintf("completed: %s in %s", e.Status, format.FormatMillis(e.DurationMS)))
	}

	s.tr.Add(ev)
	return s.err
}

// Finish terminates an unfinished chunk line.
func (s *Streamer) Finish() error {
	s.closeOpen()
	return s.err
}

func (s *Streamer) chunk(continues bool, prefix, color, content string, done bool) {
	if !continues || !s.open {
		s.closeOpen()
		s.printf("%s", colorize(s.color, color, prefix))
	}
	s.printf("%s", content)
	s.open = !done
	if done {
		s.printf("\n")
	}
}

func (s *Streamer) toolCall(call model.ToolCallEvent) {
	var prev *model.ToolCallEvent
	if existing, ok := s.tr.ToolCall(call.ID); ok {
		prev = &existing
	}

	status := call.Status
	if status == "" && prev != nil {
		status = prev.Status
	}
	name := call.Tool
	if name == "" && prev != nil {
		name = prev.Tool
	}
	if prev != nil && prev.Status == status && call.Result == nil {
		return
	}

	marker := "→"
	switch status {
	case model.ToolCompleted:
		marker = "✓"
	case model.ToolFailed:
		marker = "✗"
	}
	s.line(ansiTool, fmt.Sprintf("%s %s [%s]", marker, toolLabel(name, call.ID), status))

	if call.Result != nil {
		preview := strings.SplitN(format.ResultText(call.Result), "\n", 2)[0]
		if runes := []rune(preview); len(runes) > resultPreview {
			preview = string(runes[:resultPreview]) + "…"
		}
		if preview != "" {
			s.printf("  %s\n", preview)
		}
	}
}

func (s *Streamer) line(color, text string) {
	s.closeOpen()
	s.printf("%s\n", colorize(s.color, color, text))
}

func (s *Streamer) closeOpen() {
	if s.open {
		s.printf("\n")
		s.open = false
	}
}

func (s *Streamer) printf(layout string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.out, layout, args...)
}

func toolLabel(tool, id string) string {
	if tool == "" {
		tool = "tool"
	}
	if id == "" {
		return tool
	}
	return fmt.Sprintf("%s (%s)", tool, id)
}
