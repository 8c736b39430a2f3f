package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"tmphost/internal/storage"
)

type sqliteRecorder struct {
	db      *sql.DB
	storage storage.Storage
}

func newSQLiteRecorder(st storage.Storage) (*sqliteRecorder, error) {
	db := st.SQLiteDB()
	if db == nil {
		return nil, fmt.Errorf("sqlite database handle is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			identity TEXT,
			kind TEXT,
			path TEXT,
			extension TEXT,
			size INTEGER DEFAULT 0,
			digest TEXT,
			removed INTEGER DEFAULT 0,
			failed INTEGER DEFAULT 0
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON journal(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_journal_identity ON journal(identity)",
		"CREATE INDEX IF NOT EXISTS idx_journal_event ON journal(event)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create journal index", "error", err)
		}
	}

	return &sqliteRecorder{db: db, storage: st}, nil
}

func (r *sqliteRecorder) Record(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO journal
			(id, event, timestamp, identity, kind, path, extension, size, digest, removed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		string(e.Event),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Identity,
		e.Kind,
		e.Path,
		e.Extension,
		e.Size,
		e.Digest,
		e.Removed,
		e.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

func (r *sqliteRecorder) Close() error {
	return r.storage.Close()
}
