// Package postgres persists documents, diagrams, the moderation audit log
// and usage counters through database/sql over the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables on startup. The advisory lock serializes
// concurrent api/worker bootstraps against each other.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026052401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS diagrams (
	id TEXT PRIMARY KEY,
	document_id TEXT REFERENCES documents(id),
	chunk_index INTEGER,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	slug TEXT NOT NULL,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	markup TEXT NOT NULL,
	format TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	visibility TEXT NOT NULL,
	moderation_status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_diagrams_document_chunk
	ON diagrams(document_id, chunk_index) WHERE document_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_diagrams_moderation ON diagrams(moderation_status, updated_at);
CREATE INDEX IF NOT EXISTS idx_diagrams_public
	ON diagrams(created_at DESC) WHERE visibility = 'public' AND moderation_status = 'approved';

CREATE TABLE IF NOT EXISTS moderation_logs (
	id TEXT PRIMARY KEY,
	diagram_id TEXT NOT NULL REFERENCES diagrams(id),
	decision TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	reviewer TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_moderation_logs_diagram ON moderation_logs(diagram_id, created_at);

CREATE TABLE IF NOT EXISTS usage_counters (
	user_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	period TEXT NOT NULL,
	count BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, operation, period)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
