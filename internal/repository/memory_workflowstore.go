package repository

import (
	"context"
	"fmt"
	"sync"

	"flowport/backend/pkg/models"
)

// MemoryWorkflowStore is an in-memory Store used by tests and dry runs. Its
// ImportTx buffers writes and publishes them only on a clean return, giving
// it the same all-or-nothing behavior as the Postgres transaction.
type MemoryWorkflowStore struct {
	mu          sync.Mutex
	definitions map[string]*models.WorkflowDefinition
	versions    map[string][]*models.WorkflowDefinitionVersion

	// WriteErr, when set, makes every transactional write fail. Used to
	// exercise rollback paths.
	WriteErr error
}

// NewMemoryWorkflowStore creates an empty MemoryWorkflowStore.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		definitions: map[string]*models.WorkflowDefinition{},
		versions:    map[string][]*models.WorkflowDefinitionVersion{},
	}
}

// GetDefinition returns a workflow definition by internal id.
func (s *MemoryWorkflowStore) GetDefinition(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *def
	return &copied, nil
}

// FindDefinitionByKey returns the definition carrying the portable key.
func (s *MemoryWorkflowStore) FindDefinitionByKey(ctx context.Context, key string) (*models.WorkflowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findByKey(s.definitions, key)
}

// ListVersions returns all published versions of a definition, oldest first.
func (s *MemoryWorkflowStore) ListVersions(ctx context.Context, definitionID string) ([]*models.WorkflowDefinitionVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.WorkflowDefinitionVersion, 0, len(s.versions[definitionID]))
	for _, v := range s.versions[definitionID] {
		copied := *v
		out = append(out, &copied)
	}
	return out, nil
}

// ImportTx runs fn against a staged copy of the store and publishes the copy
// only when fn succeeds.
func (s *MemoryWorkflowStore) ImportTx(ctx context.Context, fn func(tx ImportTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:       s,
		definitions: map[string]*models.WorkflowDefinition{},
		versions:    map[string][]*models.WorkflowDefinitionVersion{},
	}
	for id, def := range s.definitions {
		copied := *def
		tx.definitions[id] = &copied
	}
	for id, vs := range s.versions {
		tx.versions[id] = append([]*models.WorkflowDefinitionVersion(nil), vs...)
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.definitions = tx.definitions
	s.versions = tx.versions
	return nil
}

// Ping always succeeds.
func (s *MemoryWorkflowStore) Ping(ctx context.Context) error { return nil }

// Definitions returns a snapshot of all stored definitions, for assertions.
func (s *MemoryWorkflowStore) Definitions() []*models.WorkflowDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.WorkflowDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		copied := *def
		out = append(out, &copied)
	}
	return out
}

type memoryTx struct {
	store       *MemoryWorkflowStore
	definitions map[string]*models.WorkflowDefinition
	versions    map[string][]*models.WorkflowDefinitionVersion
}

func (t *memoryTx) FindDefinitionByKey(ctx context.Context, key string) (*models.WorkflowDefinition, error) {
	return findByKey(t.definitions, key)
}

func (t *memoryTx) CreateDefinition(ctx context.Context, def *models.WorkflowDefinition) error {
	if t.store.WriteErr != nil {
		return t.store.WriteErr
	}
	if def.Key != "" {
		if _, err := findByKey(t.definitions, def.Key); err == nil {
			return fmt.Errorf("duplicate key %q", def.Key)
		}
	}
	copied := *def
	t.definitions[def.ID] = &copied
	return nil
}

func (t *memoryTx) CreateVersion(ctx context.Context, v *models.WorkflowDefinitionVersion) error {
	if t.store.WriteErr != nil {
		return t.store.WriteErr
	}
	if _, ok := t.definitions[v.DefinitionID]; !ok {
		return fmt.Errorf("version references unknown definition %s", v.DefinitionID)
	}
	copied := *v
	t.versions[v.DefinitionID] = append(t.versions[v.DefinitionID], &copied)
	return nil
}

func (t *memoryTx) DeleteDefinition(ctx context.Context, id string) error {
	if t.store.WriteErr != nil {
		return t.store.WriteErr
	}
	delete(t.definitions, id)
	delete(t.versions, id)
	return nil
}

func findByKey(defs map[string]*models.WorkflowDefinition, key string) (*models.WorkflowDefinition, error) {
	for _, def := range defs {
		if def.Key != "" && def.Key == key {
			copied := *def
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}
