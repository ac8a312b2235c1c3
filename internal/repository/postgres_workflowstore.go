package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowport/backend/pkg/models"
)

// PostgresWorkflowStore is a PostgreSQL implementation of the Store interface.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

const definitionColumns = `id, COALESCE(key, ''), name, description, draft,
	is_paused, is_visible, concurrency, retention, auto_pause, created_at, updated_at`

// GetDefinition returns a workflow definition by internal id.
func (s *PostgresWorkflowStore) GetDefinition(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+definitionColumns+" FROM workflow_definitions WHERE id = $1", id)
	return scanDefinition(row)
}

// FindDefinitionByKey returns the definition carrying the portable key.
func (s *PostgresWorkflowStore) FindDefinitionByKey(ctx context.Context, key string) (*models.WorkflowDefinition, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+definitionColumns+" FROM workflow_definitions WHERE key = $1", key)
	return scanDefinition(row)
}

// ListVersions returns all published versions of a definition, oldest first.
func (s *PostgresWorkflowStore) ListVersions(ctx context.Context, definitionID string) ([]*models.WorkflowDefinitionVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, definition_id, version, name, content, created_at
		 FROM workflow_versions WHERE definition_id = $1 ORDER BY version`, definitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.WorkflowDefinitionVersion
	for rows.Next() {
		var v models.WorkflowDefinitionVersion
		if err := rows.Scan(&v.ID, &v.DefinitionID, &v.Version, &v.Name, &v.Content, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// ImportTx runs fn inside one serializable transaction. Serializable
// isolation plus the unique index on key is what makes concurrent imports of
// overlapping keys fail instead of both succeeding.
func (s *PostgresWorkflowStore) ImportTx(ctx context.Context, fn func(tx ImportTx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgImportTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Ping verifies store connectivity.
func (s *PostgresWorkflowStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type pgImportTx struct {
	tx pgx.Tx
}

func (t *pgImportTx) FindDefinitionByKey(ctx context.Context, key string) (*models.WorkflowDefinition, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+definitionColumns+" FROM workflow_definitions WHERE key = $1", key)
	return scanDefinition(row)
}

func (t *pgImportTx) CreateDefinition(ctx context.Context, def *models.WorkflowDefinition) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO workflow_definitions
		 (id, key, name, description, draft, is_paused, is_visible, concurrency, retention, auto_pause)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)`,
		def.ID, def.Key, def.Name, def.Description, def.Draft,
		def.Settings.IsPaused, def.Settings.IsVisible, def.Settings.Concurrency,
		def.Settings.Retention, def.Settings.AutoPauseThresholds)
	return err
}

func (t *pgImportTx) CreateVersion(ctx context.Context, v *models.WorkflowDefinitionVersion) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO workflow_versions (id, definition_id, version, name, content)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.DefinitionID, v.Version, v.Name, v.Content)
	return err
}

func (t *pgImportTx) DeleteDefinition(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM workflow_definitions WHERE id = $1", id)
	return err
}

func scanDefinition(row pgx.Row) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	err := row.Scan(&def.ID, &def.Key, &def.Name, &def.Description, &def.Draft,
		&def.Settings.IsPaused, &def.Settings.IsVisible, &def.Settings.Concurrency,
		&def.Settings.Retention, &def.Settings.AutoPauseThresholds,
		&def.CreatedAt, &def.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}
