// Package bundle defines the portable wire format for exported workflows: a
// versioned header plus an ordered list of workflow entries. Bundles never
// carry instance-local state (internal ids, audit timestamps, actor fields);
// the stable portable key is the only cross-instance identity.
package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"flowport/backend/pkg/models"
)

const (
	// FormatName is the fixed format literal every bundle declares.
	FormatName = "workflow-bundle"
	// FormatVersion is the single format version this build reads and
	// writes. Any other declared version is rejected outright; there is no
	// cross-version migration.
	FormatVersion = 1
)

// keyPattern is the portable-key shape: at least two dot-separated lowercase
// segments, e.g. "system.email-processing".
var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*(\.[a-z0-9][a-z0-9-]*)+$`)

// ValidKey reports whether key matches the portable-key pattern.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Bundle is the file/wire-level aggregate.
type Bundle struct {
	Format        string     `json:"format"`
	FormatVersion int        `json:"formatVersion"`
	ExportedAt    string     `json:"exportedAt"`
	Workflows     []Workflow `json:"workflows"`
}

// Workflow is one exported workflow entry. Entries are always ordered by Key
// (ascending, byte-wise) inside a bundle.
type Workflow struct {
	Key                 string                     `json:"key"`
	Metadata            Metadata                   `json:"metadata"`
	OperationalSettings models.OperationalSettings `json:"operationalSettings"`
	Draft               map[string]interface{}     `json:"draft"`
	Versions            []Version                  `json:"versions"`
	Dependencies        DependencySummary          `json:"dependencies"`
}

// Metadata holds the display fields of a workflow definition.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Version is an immutable published snapshot carried inside a bundle. The
// sequence number is semantic ordering and travels; the internal row id does
// not.
type Version struct {
	Version int                    `json:"version"`
	Name    string                 `json:"name"`
	Content map[string]interface{} `json:"content"`
}

// DependencySummary is the derived set of externally-resolved names a
// workflow's content references. It is computed by scanning content, never
// stored.
type DependencySummary struct {
	Actions    []string `json:"actions"`
	NodeTypes  []string `json:"nodeTypes"`
	SchemaRefs []string `json:"schemaRefs"`
}

// Decode parses bundle bytes into the typed shape. It assumes the document
// already passed header and schema validation; decode failures here indicate
// a validator bug rather than bad input.
func Decode(raw []byte) (*Bundle, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	// Draft and version content maps must hold json.Number, not float64,
	// so numeric literals survive the store round trip unchanged.
	dec.UseNumber()

	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return &b, nil
}
