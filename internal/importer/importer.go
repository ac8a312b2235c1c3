// Package importer turns validated bundle bytes into persisted workflow
// state. All three validation stages run before any transaction opens; the
// write phase is one serializable transaction covering the whole bundle, so
// an import either lands completely or not at all.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"flowport/backend/internal/bundle"
	"flowport/backend/internal/canonical"
	"flowport/backend/internal/repository"
	"flowport/backend/internal/validate"
	"flowport/backend/pkg/models"
)

// RegistrySource provides the live view of the destination runtime's
// registries consumed by the dependency validator.
type RegistrySource interface {
	Snapshot(ctx context.Context) (validate.RegistrySnapshot, error)
}

// Options control import behavior.
type Options struct {
	// Force replaces existing workflows matched by key instead of
	// rejecting them. Replacement is delete-and-recreate, never a merge.
	Force bool
}

// Outcome is the per-workflow result of a committed import.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeOverwritten Outcome = "overwritten"
)

// WorkflowResult reports what happened to one workflow entry, including the
// freshly generated internal identifiers.
type WorkflowResult struct {
	Key          string   `json:"key"`
	Outcome      Outcome  `json:"outcome"`
	DefinitionID string   `json:"definitionId"`
	VersionIDs   []string `json:"versionIds"`
}

// Report is the result of a committed import.
type Report struct {
	Workflows []WorkflowResult `json:"workflows"`
}

// Outcomes returns the key → outcome mapping, convenient for callers that
// only care about what was created versus overwritten.
func (r *Report) Outcomes() map[string]Outcome {
	out := make(map[string]Outcome, len(r.Workflows))
	for _, w := range r.Workflows {
		out[w.Key] = w.Outcome
	}
	return out
}

// KeyConflictError means one or more bundle entries matched existing
// workflows by key while force was not set. Every conflicting key is listed.
type KeyConflictError struct {
	Keys []string
}

func (e *KeyConflictError) Error() string {
	if len(e.Keys) == 0 {
		return "key conflict with a concurrent import"
	}
	return fmt.Sprintf("workflow keys already exist: %s (use force to overwrite)",
		strings.Join(e.Keys, ", "))
}

// TransactionAbortedError wraps an underlying write failure. The whole batch
// was rolled back; nothing from the bundle was persisted.
type TransactionAbortedError struct {
	Err error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("import transaction aborted, no workflows persisted: %v", e.Err)
}

func (e *TransactionAbortedError) Unwrap() error { return e.Err }

// Importer orchestrates the validation pipeline and the transactional write.
type Importer struct {
	store      repository.Store
	registries RegistrySource
}

// New creates a new Importer.
func New(store repository.Store, registries RegistrySource) *Importer {
	return &Importer{store: store, registries: registries}
}

// Validate runs the full validation pipeline (header, schema, dependencies)
// without opening a transaction or touching the store. Safe to call any
// number of times as a dry-run preview.
func (i *Importer) Validate(ctx context.Context, raw []byte) error {
	_, err := i.validated(ctx, raw)
	return err
}

// Import validates the bundle and, if every stage passes, persists it in a
// single all-or-nothing transaction.
func (i *Importer) Import(ctx context.Context, raw []byte, opts Options) (*Report, error) {
	b, err := i.validated(ctx, raw)
	if err != nil {
		return nil, err
	}

	entries := append([]bundle.Workflow(nil), b.Workflows...)
	sort.Slice(entries, func(x, y int) bool { return entries[x].Key < entries[y].Key })

	report := &Report{Workflows: make([]WorkflowResult, 0, len(entries))}

	txErr := i.store.ImportTx(ctx, func(tx repository.ImportTx) error {
		var conflicts []string
		for _, entry := range entries {
			existing, err := tx.FindDefinitionByKey(ctx, entry.Key)
			switch {
			case err == nil && !opts.Force:
				conflicts = append(conflicts, entry.Key)
				continue
			case err == nil && opts.Force:
				if err := tx.DeleteDefinition(ctx, existing.ID); err != nil {
					return fmt.Errorf("failed to delete workflow %q: %w", entry.Key, err)
				}
				result, err := createFromEntry(ctx, tx, entry)
				if err != nil {
					return err
				}
				result.Outcome = OutcomeOverwritten
				report.Workflows = append(report.Workflows, result)
			case errors.Is(err, repository.ErrNotFound):
				result, err := createFromEntry(ctx, tx, entry)
				if err != nil {
					return err
				}
				result.Outcome = OutcomeCreated
				report.Workflows = append(report.Workflows, result)
			default:
				return fmt.Errorf("failed to look up workflow %q: %w", entry.Key, err)
			}
		}
		// Any rejected workflow collapses the whole batch, but only after
		// every entry was checked so the caller sees the full conflict set.
		if len(conflicts) > 0 {
			return &KeyConflictError{Keys: conflicts}
		}
		return nil
	})
	if txErr != nil {
		return nil, translateTxError(txErr)
	}
	return report, nil
}

// validated parses the bundle and runs the three gates in order. No gate
// opens a transaction.
func (i *Importer) validated(ctx context.Context, raw []byte) (*bundle.Bundle, error) {
	doc, err := canonical.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("bundle is not valid JSON: %w", err)
	}
	if err := validate.Header(doc); err != nil {
		return nil, err
	}
	if err := validate.Schema(doc); err != nil {
		return nil, err
	}
	b, err := bundle.Decode(raw)
	if err != nil {
		return nil, err
	}
	snap, err := i.registries.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime registries: %w", err)
	}
	if err := validate.Dependencies(b, snap); err != nil {
		return nil, err
	}
	return b, nil
}

// createFromEntry writes a fresh definition and its versions. Internal ids
// are always regenerated here; whatever identifiers the source instance had
// never survive an import.
func createFromEntry(ctx context.Context, tx repository.ImportTx, entry bundle.Workflow) (WorkflowResult, error) {
	def := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Key:         entry.Key,
		Name:        entry.Metadata.Name,
		Description: entry.Metadata.Description,
		Draft:       entry.Draft,
		Settings:    entry.OperationalSettings,
	}
	if err := tx.CreateDefinition(ctx, def); err != nil {
		return WorkflowResult{}, fmt.Errorf("failed to create workflow %q: %w", entry.Key, err)
	}

	versionIDs := make([]string, 0, len(entry.Versions))
	for _, v := range entry.Versions {
		record := &models.WorkflowDefinitionVersion{
			ID:           uuid.New().String(),
			DefinitionID: def.ID,
			Version:      v.Version,
			Name:         v.Name,
			Content:      v.Content,
		}
		if err := tx.CreateVersion(ctx, record); err != nil {
			return WorkflowResult{}, fmt.Errorf("failed to create version %d of workflow %q: %w",
				v.Version, entry.Key, err)
		}
		versionIDs = append(versionIDs, record.ID)
	}

	return WorkflowResult{
		Key:          entry.Key,
		DefinitionID: def.ID,
		VersionIDs:   versionIDs,
	}, nil
}

// translateTxError maps storage-level conflict signals onto the same
// key-conflict error surfaced for the non-forced rejected case. A concurrent
// import of an overlapping key shows up here as a unique violation or a
// serialization failure.
func translateTxError(err error) error {
	var conflict *KeyConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "40001") {
		return &KeyConflictError{}
	}
	return &TransactionAbortedError{Err: err}
}
