package importer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowport/backend/internal/bundle"
	"flowport/backend/internal/canonical"
	"flowport/backend/internal/export"
	"flowport/backend/internal/repository"
	"flowport/backend/internal/validate"
	"flowport/backend/pkg/models"
)

type staticRegistry struct {
	actions    []string
	nodeTypes  []string
	schemaRefs []string
}

func (s *staticRegistry) Snapshot(ctx context.Context) (validate.RegistrySnapshot, error) {
	return validate.NewRegistrySnapshot(s.actions, s.nodeTypes, s.schemaRefs), nil
}

func fullRegistry() *staticRegistry {
	return &staticRegistry{
		actions:    []string{"email.fetch", "email.send", "report.render"},
		nodeTypes:  []string{"trigger.imap", "sink.smtp", "transform.template"},
		schemaRefs: []string{"schemas.email-message"},
	}
}

func emailWorkflowEntry() bundle.Workflow {
	content := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "n1", "type": "trigger.imap", "action": "email.fetch"},
			map[string]interface{}{"id": "n2", "type": "sink.smtp", "action": "email.send"},
		},
	}
	return bundle.Workflow{
		Key:      "system.email-processing",
		Metadata: bundle.Metadata{Name: "Email Processing", Description: "Inbound mail pipeline"},
		OperationalSettings: models.OperationalSettings{
			IsVisible:   true,
			Concurrency: 4,
			Retention:   models.RetentionPolicy{Mode: models.RetentionDays, Days: 30},
		},
		Draft: content,
		Versions: []bundle.Version{
			{Version: 1, Name: "v1", Content: content},
		},
		Dependencies: bundle.DependencySummary{
			Actions:    []string{"email.fetch", "email.send"},
			NodeTypes:  []string{"sink.smtp", "trigger.imap"},
			SchemaRefs: []string{},
		},
	}
}

func reportingWorkflowEntry() bundle.Workflow {
	content := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "n1", "type": "transform.template", "action": "report.render"},
		},
	}
	return bundle.Workflow{
		Key:                 "system.reporting",
		Metadata:            bundle.Metadata{Name: "Reporting"},
		OperationalSettings: models.OperationalSettings{IsVisible: true, Retention: models.RetentionPolicy{Mode: models.RetentionForever}},
		Draft:               content,
		Versions:            []bundle.Version{},
		Dependencies: bundle.DependencySummary{
			Actions:    []string{"report.render"},
			NodeTypes:  []string{"transform.template"},
			SchemaRefs: []string{},
		},
	}
}

func bundleBytes(t *testing.T, workflows ...bundle.Workflow) []byte {
	t.Helper()
	raw, err := canonical.Marshal(bundle.Bundle{
		Format:        bundle.FormatName,
		FormatVersion: bundle.FormatVersion,
		ExportedAt:    "2026-08-01T12:00:00Z",
		Workflows:     workflows,
	})
	require.NoError(t, err)
	return raw
}

func TestImport_CreatesFreshWorkflows(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	imp := New(store, fullRegistry())
	ctx := context.Background()

	report, err := imp.Import(ctx, bundleBytes(t, emailWorkflowEntry()), Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]Outcome{"system.email-processing": OutcomeCreated}, report.Outcomes())
	require.Len(t, report.Workflows, 1)
	assert.NotEmpty(t, report.Workflows[0].DefinitionID)
	require.Len(t, report.Workflows[0].VersionIDs, 1)

	def, err := store.FindDefinitionByKey(ctx, "system.email-processing")
	require.NoError(t, err)
	assert.Equal(t, "Email Processing", def.Name)
	assert.Equal(t, 4, def.Settings.Concurrency)

	versions, err := store.ListVersions(ctx, def.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
}

func TestImport_ConflictWithoutForceIsStable(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	imp := New(store, fullRegistry())
	ctx := context.Background()
	raw := bundleBytes(t, emailWorkflowEntry())

	_, err := imp.Import(ctx, raw, Options{})
	require.NoError(t, err)
	before, err := store.FindDefinitionByKey(ctx, "system.email-processing")
	require.NoError(t, err)

	// Every repeated attempt yields the same conflict and changes nothing.
	for attempt := 0; attempt < 3; attempt++ {
		_, err = imp.Import(ctx, raw, Options{})
		var conflict *KeyConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"system.email-processing"}, conflict.Keys)

		after, err := store.FindDefinitionByKey(ctx, "system.email-processing")
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
	}
}

func TestImport_ForceReplacesWithFreshIdentifiers(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	imp := New(store, fullRegistry())
	ctx := context.Background()
	raw := bundleBytes(t, emailWorkflowEntry())

	first, err := imp.Import(ctx, raw, Options{})
	require.NoError(t, err)

	second, err := imp.Import(ctx, raw, Options{Force: true})
	require.NoError(t, err)

	assert.Equal(t, map[string]Outcome{"system.email-processing": OutcomeOverwritten}, second.Outcomes())
	assert.NotEqual(t, first.Workflows[0].DefinitionID, second.Workflows[0].DefinitionID)
	assert.NotEqual(t, first.Workflows[0].VersionIDs, second.Workflows[0].VersionIDs)

	defs := store.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, second.Workflows[0].DefinitionID, defs[0].ID)
	assert.Equal(t, 4, defs[0].Settings.Concurrency)
}

func TestImport_BatchIsAllOrNothing(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	imp := New(store, fullRegistry())
	ctx := context.Background()

	// Pre-create only the email workflow, then import a two-entry bundle
	// without force: the reporting entry is fine on its own, but the batch
	// must not persist it.
	_, err := imp.Import(ctx, bundleBytes(t, emailWorkflowEntry()), Options{})
	require.NoError(t, err)

	_, err = imp.Import(ctx, bundleBytes(t, emailWorkflowEntry(), reportingWorkflowEntry()), Options{})
	var conflict *KeyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"system.email-processing"}, conflict.Keys)

	_, err = store.FindDefinitionByKey(ctx, "system.reporting")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestImport_WriteFailureAbortsWholeBatch(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	store.WriteErr = errors.New("disk full")
	imp := New(store, fullRegistry())

	_, err := imp.Import(context.Background(), bundleBytes(t, emailWorkflowEntry()), Options{})

	var aborted *TransactionAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.ErrorContains(t, aborted.Err, "disk full")
	assert.Empty(t, store.Definitions())
}

func TestImport_StorageConflictSignalsMapToKeyConflict(t *testing.T) {
	// A concurrent import of an overlapping key surfaces from Postgres as a
	// unique violation or a serialization failure. Both must come back as the
	// same key-conflict error the non-forced rejected case produces.
	codes := map[string]string{
		"unique violation":      "23505",
		"serialization failure": "40001",
	}
	for name, code := range codes {
		t.Run(name, func(t *testing.T) {
			store := repository.NewMemoryWorkflowStore()
			store.WriteErr = &pgconn.PgError{Code: code, Message: name}
			imp := New(store, fullRegistry())

			_, err := imp.Import(context.Background(), bundleBytes(t, emailWorkflowEntry()), Options{})

			var conflict *KeyConflictError
			require.ErrorAs(t, err, &conflict)
			var aborted *TransactionAbortedError
			assert.False(t, errors.As(err, &aborted))
			assert.Empty(t, store.Definitions())
		})
	}
}

func TestImport_NumericContentSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()

	// Integers beyond 2^53 and decimal literal forms must reach the store
	// exactly as written and come back identical on re-export.
	draft := map[string]interface{}{
		"retryBudget":    json.Number("9007199254740993"),
		"errorThreshold": json.Number("1.10"),
	}
	entry := bundle.Workflow{
		Key:                 "system.counters",
		Metadata:            bundle.Metadata{Name: "Counters"},
		OperationalSettings: models.OperationalSettings{Retention: models.RetentionPolicy{Mode: models.RetentionForever}},
		Draft:               draft,
		Versions:            []bundle.Version{{Version: 1, Name: "v1", Content: draft}},
		Dependencies: bundle.DependencySummary{
			Actions:    []string{},
			NodeTypes:  []string{},
			SchemaRefs: []string{},
		},
	}

	store := repository.NewMemoryWorkflowStore()
	report, err := New(store, &staticRegistry{}).Import(ctx, bundleBytes(t, entry), Options{})
	require.NoError(t, err)
	require.Len(t, report.Workflows, 1)

	raw, err := export.NewExporter(store).Export(ctx, []string{report.Workflows[0].DefinitionID})
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"retryBudget": 9007199254740993`)
	assert.Contains(t, string(raw), `"errorThreshold": 1.10`)
}

func TestImport_MissingDependenciesAggregated(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	// Registry provides nothing the bundle needs: 3 actions and 3 node
	// types across two workflows must come back as one aggregated error.
	imp := New(store, &staticRegistry{})

	_, err := imp.Import(context.Background(),
		bundleBytes(t, emailWorkflowEntry(), reportingWorkflowEntry()), Options{})

	var missing *validate.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Len(t, missing.Missing, 6)
	assert.Empty(t, store.Definitions())
}

func TestImport_UnsupportedVersionRejectedBeforeAnyWrite(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	imp := New(store, fullRegistry())

	raw := []byte(`{"format": "workflow-bundle", "formatVersion": 2, "exportedAt": "2026-08-01T12:00:00Z", "workflows": []}`)
	_, err := imp.Import(context.Background(), raw, Options{})

	var unsupported *validate.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "2", unsupported.Version)
	assert.Empty(t, store.Definitions())
}

func TestImport_SchemaViolationsSurfaceAggregated(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	imp := New(store, fullRegistry())

	raw := []byte(`{
	  "format": "workflow-bundle",
	  "formatVersion": 1,
	  "exportedAt": "2026-08-01T12:00:00Z",
	  "workflows": [{"key": "bad key", "metadata": {"name": "X"}}]
	}`)
	_, err := imp.Import(context.Background(), raw, Options{})

	var sve *validate.SchemaValidationError
	require.ErrorAs(t, err, &sve)
	assert.GreaterOrEqual(t, len(sve.Violations), 2)
	assert.Empty(t, store.Definitions())
}

func TestValidate_DryRunNeverWrites(t *testing.T) {
	store := repository.NewMemoryWorkflowStore()
	imp := New(store, fullRegistry())
	raw := bundleBytes(t, emailWorkflowEntry())

	for attempt := 0; attempt < 3; attempt++ {
		require.NoError(t, imp.Validate(context.Background(), raw))
	}
	assert.Empty(t, store.Definitions())
}

func TestImport_RoundTripFromExport(t *testing.T) {
	ctx := context.Background()

	// Source instance.
	source := repository.NewMemoryWorkflowStore()
	draft := map[string]interface{}{
		"nodes": []interface{}{
			map[string]interface{}{"id": "n1", "type": "trigger.imap", "action": "email.fetch"},
		},
	}
	err := source.ImportTx(ctx, func(tx repository.ImportTx) error {
		if err := tx.CreateDefinition(ctx, &models.WorkflowDefinition{
			ID:          "src-def",
			Key:         "system.email-processing",
			Name:        "Email Processing",
			Description: "Inbound mail pipeline",
			Draft:       draft,
			Settings: models.OperationalSettings{
				IsPaused:    true,
				IsVisible:   true,
				Concurrency: 2,
				Retention:   models.RetentionPolicy{Mode: models.RetentionDays, Days: 7},
			},
		}); err != nil {
			return err
		}
		return tx.CreateVersion(ctx, &models.WorkflowDefinitionVersion{
			ID: "src-ver", DefinitionID: "src-def", Version: 1, Name: "v1", Content: draft,
		})
	})
	require.NoError(t, err)

	raw, err := export.NewExporter(source).Export(ctx, []string{"src-def"})
	require.NoError(t, err)

	// Destination instance, empty.
	dest := repository.NewMemoryWorkflowStore()
	registry := &staticRegistry{
		actions:   []string{"email.fetch"},
		nodeTypes: []string{"trigger.imap"},
	}
	report, err := New(dest, registry).Import(ctx, raw, Options{})
	require.NoError(t, err)
	require.Len(t, report.Workflows, 1)

	imported, err := dest.FindDefinitionByKey(ctx, "system.email-processing")
	require.NoError(t, err)

	// Behaviorally equivalent, identifiers freshly generated.
	assert.NotEqual(t, "src-def", imported.ID)
	assert.Equal(t, "Email Processing", imported.Name)
	assert.Equal(t, "Inbound mail pipeline", imported.Description)
	assert.True(t, imported.Settings.IsPaused)
	assert.Equal(t, 2, imported.Settings.Concurrency)
	assert.Equal(t, models.RetentionPolicy{Mode: models.RetentionDays, Days: 7}, imported.Settings.Retention)

	versions, err := dest.ListVersions(ctx, imported.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.NotEqual(t, "src-ver", versions[0].ID)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, "v1", versions[0].Name)
}
