package repository

import (
	"context"
	"errors"

	"flowport/backend/pkg/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary for workflow definitions and their
// published versions. Reads run at the store's normal isolation; all import
// writes go through ImportTx so a whole bundle commits or rolls back as one
// unit.
type Store interface {
	// GetDefinition returns a workflow definition by internal id.
	GetDefinition(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	// ListVersions returns all published versions of a definition, oldest first.
	ListVersions(ctx context.Context, definitionID string) ([]*models.WorkflowDefinitionVersion, error)
	// FindDefinitionByKey returns the definition carrying the portable key.
	FindDefinitionByKey(ctx context.Context, key string) (*models.WorkflowDefinition, error)
	// ImportTx runs fn inside one serializable transaction. If fn returns an
	// error the transaction is rolled back and that error is returned.
	ImportTx(ctx context.Context, fn func(tx ImportTx) error) error
	// Ping verifies store connectivity.
	Ping(ctx context.Context) error
}

// ImportTx is the write scope handed to import logic inside a transaction.
type ImportTx interface {
	FindDefinitionByKey(ctx context.Context, key string) (*models.WorkflowDefinition, error)
	CreateDefinition(ctx context.Context, def *models.WorkflowDefinition) error
	CreateVersion(ctx context.Context, v *models.WorkflowDefinitionVersion) error
	// DeleteDefinition removes a definition and, via cascade, all its versions.
	DeleteDefinition(ctx context.Context, id string) error
}
