package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the workflow tables when they do not exist. The unique
// index on key is load-bearing: the importer relies on it as the conflict
// backstop for concurrent imports of the same portable key.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_definitions (
			id          UUID PRIMARY KEY,
			key         TEXT UNIQUE,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			draft       JSONB NOT NULL DEFAULT '{}'::jsonb,
			is_paused   BOOLEAN NOT NULL DEFAULT FALSE,
			is_visible  BOOLEAN NOT NULL DEFAULT TRUE,
			concurrency INT NOT NULL DEFAULT 1,
			retention   JSONB NOT NULL DEFAULT '{"mode":"forever"}'::jsonb,
			auto_pause  JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS workflow_versions (
			id            UUID PRIMARY KEY,
			definition_id UUID NOT NULL REFERENCES workflow_definitions(id) ON DELETE CASCADE,
			version       INT NOT NULL,
			name          TEXT NOT NULL,
			content       JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (definition_id, version)
		);
	`)
	return err
}
