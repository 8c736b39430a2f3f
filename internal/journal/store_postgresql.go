package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tmphost/internal/storage"
)

type postgresRecorder struct {
	pool    *pgxpool.Pool
	storage storage.Storage
}

func newPostgresRecorder(ctx context.Context, st storage.Storage) (*postgresRecorder, error) {
	pool, ok := st.PostgreSQLPool().(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, fmt.Errorf("postgresql pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS journal (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			identity TEXT,
			kind TEXT,
			path TEXT,
			extension TEXT,
			size BIGINT DEFAULT 0,
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
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			return nil, fmt.Errorf("failed to create journal index: %w", err)
		}
	}

	return &postgresRecorder{pool: pool, storage: st}, nil
}

func (r *postgresRecorder) Record(ctx context.Context, e *Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO journal
			(id, event, timestamp, identity, kind, path, extension, size, digest, removed, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		e.ID,
		string(e.Event),
		e.Timestamp.UTC(),
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

func (r *postgresRecorder) Close() error {
	return r.storage.Close()
}
