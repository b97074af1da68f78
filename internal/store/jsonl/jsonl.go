// Package jsonl implements model.LogSource over a directory of
// <session>.jsonl files, one log record per line.
package jsonl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"acplog/internal/logging"
	"acplog/internal/model"
	"acplog/internal/parser"
	"acplog/internal/store"
)

const ext = ".jsonl"

var errStop = errors.New("stop iteration")

func init() {
	model.RegisterJSONLSource(func(location string) (model.LogSource, error) {
		return Open(location)
	})
}

// Source reads sessions from Root. Session ids are file names without the
// .jsonl extension; nested directories are searched too.
type Source struct {
	Root   string
	Logger *slog.Logger
}

// Open returns a Source for the directory at root.
func Open(root string) (*Source, error) {
	if root == "" {
		return nil, errors.New("sessions directory is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open sessions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open sessions directory: %s is not a directory", root)
	}
	return &Source{Root: root}, nil
}

// ListSessions summarizes every session file, newest first. Files that
// cannot be read are logged and skipped.
func (s *Source) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	var summaries []model.SessionSummary

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logging.OrDefault(s.Logger).Warn("walk sessions directory", "path", path, "error", walkErr)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		summarizer := store.NewSummarizer(sessionID(path), path)
		err := parser.IterateLogFile(path, 0, func(rec model.LogRecord) error {
			summarizer.Add(rec)
			return nil
		})
		if err != nil {
			logging.OrDefault(s.Logger).Warn("summarize session", "path", path, "error", err)
			return nil
		}
		summaries = append(summaries, summarizer.Summary())
		return nil
	})
	if err != nil {
		return summaries, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].StartedAt.Equal(summaries[j].StartedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].StartedAt.After(summaries[j].StartedAt)
	})
	return summaries, nil
}

// ResolveSession accepts an existing file path, a path relative to Root, or
// a bare session id.
func (s *Source) ResolveSession(ctx context.Context, idOrPath string) (string, error) {
	if idOrPath == "" {
		return "", errors.New("session id is required")
	}
	candidates := []string{
		idOrPath,
		filepath.Join(s.Root, idOrPath),
		filepath.Join(s.Root, idOrPath+ext),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	var matched string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		if sessionID(path) == idOrPath {
			matched = path
			return errStop
		}
		return nil
	})
	if matched != "" {
		return matched, nil
	}
	if err != nil && !errors.Is(err, errStop) {
		return "", err
	}
	return "", fmt.Errorf("%w: %s under %s", store.ErrSessionNotFound, idOrPath, s.Root)
}

// IterateLogs streams the records of a session file.
func (s *Source) IterateLogs(ctx context.Context, session string, afterID int64, fn func(model.LogRecord) error) error {
	path, err := s.ResolveSession(ctx, session)
	if err != nil {
		return err
	}
	return parser.IterateLogFile(path, afterID, func(rec model.LogRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(rec)
	})
}

// Close is a no-op; files are opened per call.
func (s *Source) Close() error {
	return nil
}

func sessionID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ext)
}
