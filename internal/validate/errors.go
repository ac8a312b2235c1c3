// Package validate implements the three staged bundle checks that gate an
// import: header (format/version), schema (structure), and dependencies
// (satisfiability against the runtime's registries). All stages are pure
// functions of their inputs and safe to re-run; the schema and dependency
// stages aggregate every problem they find instead of stopping at the first.
package validate

import (
	"fmt"
	"strings"
)

// UnsupportedFormatError means the bundle header declares a format or format
// version this build does not recognize. It is always fatal: unrecognized
// versions are rejected outright rather than interpreted best-effort.
type UnsupportedFormatError struct {
	Format  string
	Version string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported bundle format %q version %s", e.Format, e.Version)
}

// Violation is one structural problem, located by a path into the bundle
// document (e.g. "workflows[2].operationalSettings.retention.mode").
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaValidationError aggregates every structural violation found in one
// pass over the bundle.
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("bundle failed schema validation: %s: %s",
			e.Violations[0].Path, e.Violations[0].Message)
	}
	return fmt.Sprintf("bundle failed schema validation with %d violations", len(e.Violations))
}

// Dependency kinds as they appear in missing-dependency reports.
const (
	KindAction    = "action"
	KindNodeType  = "nodeType"
	KindSchemaRef = "schemaRef"
)

// MissingDependency identifies one declared dependency the destination
// runtime does not provide.
type MissingDependency struct {
	WorkflowKey string `json:"workflowKey"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
}

// MissingDependencyError aggregates every unsatisfied dependency across all
// workflows and all kinds in the bundle, so the operator sees the complete
// list in one pass.
type MissingDependencyError struct {
	Missing []MissingDependency
}

func (e *MissingDependencyError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		names = append(names, fmt.Sprintf("%s %q (workflow %s)", m.Kind, m.Name, m.WorkflowKey))
	}
	return fmt.Sprintf("bundle has %d unsatisfied dependencies: %s",
		len(e.Missing), strings.Join(names, ", "))
}
