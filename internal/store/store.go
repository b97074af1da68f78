// Package store holds the pieces shared by every log source backend:
// session summaries and the not-found sentinel.
package store

import (
	"errors"
	"strings"
	"time"

	"acplog/internal/model"
	"acplog/internal/parser"
	"acplog/internal/transcript"
)

// ErrSessionNotFound is returned when a session id or path does not resolve.
var ErrSessionNotFound = errors.New("session not found")

// MaxSummary is the default bound on the summary text in runes.
const MaxSummary = 80

// Summarizer accumulates a SessionSummary from the records of one session.
// Feed records in ID order with Add, then call Summary.
type Summarizer struct {
	// MaxSummary bounds the summary text in runes; zero keeps it whole.
	MaxSummary int

	id    string
	path  string
	count int
	first time.Time
	last  time.Time
	tr    *transcript.Transcript
	// userAt is the position of the first user message in tr, or -1.
	userAt int
}

// NewSummarizer starts a summary for the session with the given id and path.
func NewSummarizer(id, path string) *Summarizer {
	return &Summarizer{MaxSummary: MaxSummary, id: id, path: path, tr: transcript.New(), userAt: -1}
}

// Add accounts for one record.
func (s *Summarizer) Add(rec model.LogRecord) {
	s.count++
	if ts := model.ParseTime(rec.Timestamp); !ts.IsZero() {
		if s.first.IsZero() || ts.Before(s.first) {
			s.first = ts
		}
		if ts.After(s.last) {
			s.last = ts
		}
	}
	if s.summaryDone() {
		return
	}
	s.tr.Add(parser.ParseSessionLog(rec))
	// Messages only append or merge into the tail, so the first user
	// message is found there and never moves afterwards.
	if s.userAt < 0 {
		if msg, ok := s.tr.Last(); ok && isUserMessage(msg) {
			s.userAt = s.tr.Len() - 1
		}
	}
}

// Summary returns the accumulated summary.
func (s *Summarizer) Summary() model.SessionSummary {
	return model.SessionSummary{
		ID:              s.id,
		Path:            s.path,
		StartedAt:       s.first,
		Summary:         truncate(s.firstUserMessage(), s.MaxSummary),
		RecordCount:     s.count,
		DurationSeconds: durationSeconds(s.first, s.last),
	}
}

// summaryDone reports whether the first user message is complete, after
// which records no longer need to be parsed.
func (s *Summarizer) summaryDone() bool {
	if s.userAt < 0 {
		return false
	}
	msg := s.tr.At(s.userAt).(model.MessageEvent)
	return msg.Done || s.userAt < s.tr.Len()-1
}

func (s *Summarizer) firstUserMessage() string {
	if s.userAt < 0 {
		return ""
	}
	msg := s.tr.At(s.userAt).(model.MessageEvent)
	return strings.Join(strings.Fields(msg.Content), " ")
}

func isUserMessage(ev model.Event) bool {
	msg, ok := ev.(model.MessageEvent)
	return ok && msg.Role == model.RoleUser
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

func durationSeconds(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Seconds())
}
