// Package journal keeps an append-only record of stored objects and
// deletion runs, for operator accounting. Recording is best-effort:
// callers log a failed write and carry on with the upload.
package journal

import (
	"context"
	"fmt"
	"time"

	"tmphost/internal/storage"
)

// Event distinguishes journal entry types.
type Event string

const (
	EventUpload Event = "upload"
	EventPurge  Event = "purge"
)

// Entry is one journal record.
type Entry struct {
	// ID is the submission's trace id.
	ID        string    `bson:"_id" json:"id"`
	Event     Event     `bson:"event" json:"event"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Identity  string    `bson:"identity" json:"identity"`

	// Upload fields.
	Kind      string `bson:"kind,omitempty" json:"kind,omitempty"`
	Path      string `bson:"path,omitempty" json:"path,omitempty"`
	Extension string `bson:"extension,omitempty" json:"extension,omitempty"`
	Size      int64  `bson:"size,omitempty" json:"size,omitempty"`
	// Digest is the xxhash64 of the stored bytes, hex encoded.
	Digest string `bson:"digest,omitempty" json:"digest,omitempty"`

	// Purge fields.
	Removed int `bson:"removed,omitempty" json:"removed,omitempty"`
	Failed  int `bson:"failed,omitempty" json:"failed,omitempty"`
}

// Recorder writes journal entries. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
	Close() error
}

// Result bundles a Recorder with the storage it owns.
type Result struct {
	Recorder Recorder
	Storage  storage.Storage
}

// Close releases the recorder and its storage.
func (r *Result) Close() error {
	if r == nil || r.Recorder == nil {
		return nil
	}
	return r.Recorder.Close()
}

// Config holds journal settings, mapped from the application config.
type Config struct {
	Enabled bool
	Storage storage.Config
}

// New creates the journal for the configured backend, or a no-op
// recorder when the journal is disabled.
func New(ctx context.Context, cfg Config) (*Result, error) {
	if !cfg.Enabled {
		return &Result{Recorder: NoopRecorder{}}, nil
	}

	st, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal storage: %w", err)
	}

	rec, err := newRecorder(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Result{Recorder: rec, Storage: st}, nil
}

func newRecorder(ctx context.Context, st storage.Storage) (Recorder, error) {
	switch st.Type() {
	case storage.TypeSQLite:
		return newSQLiteRecorder(st)
	case storage.TypePostgreSQL:
		return newPostgresRecorder(ctx, st)
	case storage.TypeMongoDB:
		return newMongoRecorder(st)
	default:
		return nil, fmt.Errorf("unsupported journal storage type: %s", st.Type())
	}
}

// NoopRecorder discards all entries. Used when the journal is disabled.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, *Entry) error { return nil }
func (NoopRecorder) Close() error                         { return nil }
