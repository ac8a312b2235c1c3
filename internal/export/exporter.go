// Package export assembles workflow definitions into portable bundles.
package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"flowport/backend/internal/bundle"
	"flowport/backend/internal/canonical"
	"flowport/backend/internal/repository"
)

// ExportError reports the workflow ids that could not be exported. Every
// offending id is listed; nothing is silently skipped.
type ExportError struct {
	// UnknownIDs are ids that match no workflow definition.
	UnknownIDs []string
	// UnkeyedIDs are definitions that exist but carry no portable key and
	// therefore cannot be represented in a bundle.
	UnkeyedIDs []string
}

func (e *ExportError) Error() string {
	var parts []string
	if len(e.UnknownIDs) > 0 {
		parts = append(parts, fmt.Sprintf("unknown workflow ids: %s", strings.Join(e.UnknownIDs, ", ")))
	}
	if len(e.UnkeyedIDs) > 0 {
		parts = append(parts, fmt.Sprintf("workflows without a portable key: %s", strings.Join(e.UnkeyedIDs, ", ")))
	}
	return "export failed: " + strings.Join(parts, "; ")
}

// Exporter projects stored workflow state into canonical bundle bytes.
// Export is read-only; concurrent exports never interfere with each other or
// with writers.
type Exporter struct {
	store repository.Store
	now   func() time.Time
}

// NewExporter creates a new Exporter.
func NewExporter(store repository.Store) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export loads the given workflow definitions with all their published
// versions, projects the portable subset of their fields, and returns the
// canonical bundle bytes. Entries are ordered by portable key so the same
// logical set of workflows always serializes identically, independent of
// database ordering or the order of ids in the request.
func (e *Exporter) Export(ctx context.Context, ids []string) ([]byte, error) {
	exportErr := &ExportError{}
	entries := make([]bundle.Workflow, 0, len(ids))
	seen := map[string]bool{}

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		def, err := e.store.GetDefinition(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			exportErr.UnknownIDs = append(exportErr.UnknownIDs, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}
		if def.Key == "" {
			exportErr.UnkeyedIDs = append(exportErr.UnkeyedIDs, id)
			continue
		}

		versions, err := e.store.ListVersions(ctx, def.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load versions of workflow %s: %w", id, err)
		}

		draft := def.Draft
		if draft == nil {
			draft = map[string]interface{}{}
		}

		contents := make([]map[string]interface{}, 0, len(versions)+1)
		contents = append(contents, draft)

		entryVersions := make([]bundle.Version, 0, len(versions))
		for _, v := range versions {
			content := v.Content
			if content == nil {
				content = map[string]interface{}{}
			}
			contents = append(contents, content)
			entryVersions = append(entryVersions, bundle.Version{
				Version: v.Version,
				Name:    v.Name,
				Content: content,
			})
		}

		// Only the portable subset travels: no internal ids, no audit
		// timestamps, no actor fields. Operational settings go verbatim
		// because they are behaviorally significant.
		entries = append(entries, bundle.Workflow{
			Key: def.Key,
			Metadata: bundle.Metadata{
				Name:        def.Name,
				Description: def.Description,
			},
			OperationalSettings: def.Settings,
			Draft:               draft,
			Versions:            entryVersions,
			Dependencies:        bundle.ScanDependencies(contents...),
		})
	}

	if len(exportErr.UnknownIDs) > 0 || len(exportErr.UnkeyedIDs) > 0 {
		return nil, exportErr
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	b := bundle.Bundle{
		Format:        bundle.FormatName,
		FormatVersion: bundle.FormatVersion,
		ExportedAt:    e.now().UTC().Format(time.RFC3339),
		Workflows:     entries,
	}
	return canonical.Marshal(b)
}
