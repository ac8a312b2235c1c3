package export

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowport/backend/internal/bundle"
	"flowport/backend/internal/repository"
	"flowport/backend/pkg/models"
)

func seedStore(t *testing.T) *repository.MemoryWorkflowStore {
	t.Helper()
	store := repository.NewMemoryWorkflowStore()

	defs := []*models.WorkflowDefinition{
		{
			ID:          "id-email",
			Key:         "system.email-processing",
			Name:        "Email Processing",
			Description: "Inbound mail pipeline",
			Draft: map[string]interface{}{
				"nodes": []interface{}{
					map[string]interface{}{"id": "n1", "type": "trigger.imap", "action": "email.fetch"},
				},
			},
			Settings: models.OperationalSettings{
				IsVisible:   true,
				Concurrency: 4,
				Retention:   models.RetentionPolicy{Mode: models.RetentionDays, Days: 30},
			},
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:   "id-report",
			Key:  "system.reporting",
			Name: "Reporting",
			Draft: map[string]interface{}{
				"nodes": []interface{}{
					map[string]interface{}{"id": "n1", "type": "transform.template", "action": "report.render"},
				},
			},
			Settings: models.OperationalSettings{
				IsVisible: true,
				Retention: models.RetentionPolicy{Mode: models.RetentionForever},
			},
		},
	}

	err := store.ImportTx(context.Background(), func(tx repository.ImportTx) error {
		for _, def := range defs {
			if err := tx.CreateDefinition(context.Background(), def); err != nil {
				return err
			}
		}
		return tx.CreateVersion(context.Background(), &models.WorkflowDefinitionVersion{
			ID:           "ver-email-1",
			DefinitionID: "id-email",
			Version:      1,
			Name:         "v1",
			Content: map[string]interface{}{
				"nodes": []interface{}{
					map[string]interface{}{"id": "n1", "type": "trigger.imap", "action": "email.fetch"},
					map[string]interface{}{"id": "n2", "type": "sink.smtp", "action": "email.send"},
				},
			},
		})
	})
	require.NoError(t, err)
	return store
}

func fixedClockExporter(store repository.Store) *Exporter {
	e := NewExporter(store)
	e.now = func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestExport_Deterministic(t *testing.T) {
	store := seedStore(t)
	e := fixedClockExporter(store)
	ctx := context.Background()

	first, err := e.Export(ctx, []string{"id-email", "id-report"})
	require.NoError(t, err)
	// Same ids in reverse request order: byte-identical output.
	second, err := e.Export(ctx, []string{"id-report", "id-email", "id-email"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, byte('\n'), first[len(first)-1])
}

func TestExport_EntriesSortedByKey(t *testing.T) {
	store := seedStore(t)
	e := fixedClockExporter(store)

	raw, err := e.Export(context.Background(), []string{"id-report", "id-email"})
	require.NoError(t, err)

	b, err := bundle.Decode(raw)
	require.NoError(t, err)
	require.Len(t, b.Workflows, 2)
	assert.Equal(t, "system.email-processing", b.Workflows[0].Key)
	assert.Equal(t, "system.reporting", b.Workflows[1].Key)
	assert.Equal(t, bundle.FormatName, b.Format)
	assert.Equal(t, bundle.FormatVersion, b.FormatVersion)
}

func TestExport_DependencySummaryCoversDraftAndVersions(t *testing.T) {
	store := seedStore(t)
	e := fixedClockExporter(store)

	raw, err := e.Export(context.Background(), []string{"id-email"})
	require.NoError(t, err)

	b, err := bundle.Decode(raw)
	require.NoError(t, err)
	require.Len(t, b.Workflows, 1)
	deps := b.Workflows[0].Dependencies
	// email.send only appears in version 1 content, email.fetch in both the
	// draft and the version; the summary covers both and deduplicates.
	assert.Equal(t, []string{"email.fetch", "email.send"}, deps.Actions)
	assert.Equal(t, []string{"sink.smtp", "trigger.imap"}, deps.NodeTypes)
	assert.Empty(t, deps.SchemaRefs)
}

func TestExport_OmitsInstanceLocalFields(t *testing.T) {
	store := seedStore(t)
	e := fixedClockExporter(store)

	raw, err := e.Export(context.Background(), []string{"id-email"})
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	wf := doc["workflows"].([]interface{})[0].(map[string]interface{})

	for _, field := range []string{"id", "created_at", "createdAt", "updated_at"} {
		_, present := wf[field]
		assert.False(t, present, "bundle entry must not carry %q", field)
	}
	assert.NotContains(t, string(raw), "id-email")
	assert.NotContains(t, string(raw), "ver-email-1")
}

func TestExport_UnknownIDsReportedPerID(t *testing.T) {
	store := seedStore(t)
	e := fixedClockExporter(store)

	_, err := e.Export(context.Background(), []string{"id-email", "nope-1", "nope-2"})

	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, []string{"nope-1", "nope-2"}, exportErr.UnknownIDs)
	assert.Empty(t, exportErr.UnkeyedIDs)
}

func TestExport_UnkeyedDefinitionRejected(t *testing.T) {
	store := seedStore(t)
	err := store.ImportTx(context.Background(), func(tx repository.ImportTx) error {
		return tx.CreateDefinition(context.Background(), &models.WorkflowDefinition{
			ID:   "id-legacy",
			Name: "Legacy flow without key",
		})
	})
	require.NoError(t, err)

	e := fixedClockExporter(store)
	_, err = e.Export(context.Background(), []string{"id-legacy"})

	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, []string{"id-legacy"}, exportErr.UnkeyedIDs)
}

func TestExport_EmptyIDSetYieldsEmptyBundle(t *testing.T) {
	store := seedStore(t)
	e := fixedClockExporter(store)

	raw, err := e.Export(context.Background(), nil)
	require.NoError(t, err)

	b, err := bundle.Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, b.Workflows)
	assert.Contains(t, string(raw), `"workflows": []`)
}
