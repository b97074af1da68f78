package model

import (
	"errors"
	"fmt"
)

// SourceKind selects a LogSource backend.
type SourceKind string

const (
	// SourceJSONL reads a directory of <session>.jsonl files.
	SourceJSONL SourceKind = "jsonl"
	// SourceSQLite reads the session_logs table of a SQLite database.
	SourceSQLite SourceKind = "sqlite"
)

// ErrUnknownSource is returned by NewSource for unregistered kinds.
var ErrUnknownSource = errors.New("unknown log source")

var errUnknownEvent = errors.New("unknown event type")

// SourceFactory opens a LogSource at location.
// Factories are registered by the store packages to avoid import cycles.
type SourceFactory func(location string) (LogSource, error)

var (
	jsonlFactory  SourceFactory
	sqliteFactory SourceFactory
)

// RegisterJSONLSource registers the JSONL directory source factory.
func RegisterJSONLSource(factory SourceFactory) {
	jsonlFactory = factory
}

// RegisterSQLiteSource registers the SQLite source factory.
func RegisterSQLiteSource(factory SourceFactory) {
	sqliteFactory = factory
}

// NewSource opens a log source of the given kind.
func NewSource(kind SourceKind, location string) (LogSource, error) {
	switch kind {
	case SourceJSONL:
		if jsonlFactory == nil {
			return nil, fmt.Errorf("jsonl source not registered: %w", ErrUnknownSource)
		}
		return jsonlFactory(location)
	case SourceSQLite:
		if sqliteFactory == nil {
			return nil, fmt.Errorf("sqlite source not registered: %w", ErrUnknownSource)
		}
		return sqliteFactory(location)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, kind)
	}
}
