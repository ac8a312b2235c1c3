package validate

import (
	"flowport/backend/internal/bundle"
)

// RegistrySnapshot is a point-in-time view of what the destination runtime
// provides: the registered action identifiers, node-type identifiers and
// schema references. It is supplied by the runtime's registry, not owned
// here, and treated as immutable during validation.
type RegistrySnapshot struct {
	Actions    map[string]struct{}
	NodeTypes  map[string]struct{}
	SchemaRefs map[string]struct{}
}

// NewRegistrySnapshot builds a snapshot from plain name lists.
func NewRegistrySnapshot(actions, nodeTypes, schemaRefs []string) RegistrySnapshot {
	return RegistrySnapshot{
		Actions:    toSet(actions),
		NodeTypes:  toSet(nodeTypes),
		SchemaRefs: toSet(schemaRefs),
	}
}

// Dependencies cross-checks every workflow entry's declared dependency
// summary against the registry snapshot. All unsatisfied names across all
// workflows and kinds are accumulated into a single MissingDependencyError;
// the importing operator sees the complete list in one pass.
func Dependencies(b *bundle.Bundle, snap RegistrySnapshot) error {
	var missing []MissingDependency

	for _, wf := range b.Workflows {
		missing = appendMissing(missing, wf.Key, KindAction, wf.Dependencies.Actions, snap.Actions)
		missing = appendMissing(missing, wf.Key, KindNodeType, wf.Dependencies.NodeTypes, snap.NodeTypes)
		missing = appendMissing(missing, wf.Key, KindSchemaRef, wf.Dependencies.SchemaRefs, snap.SchemaRefs)
	}

	if len(missing) > 0 {
		return &MissingDependencyError{Missing: missing}
	}
	return nil
}

func appendMissing(missing []MissingDependency, key, kind string, names []string, registry map[string]struct{}) []MissingDependency {
	for _, name := range names {
		if _, ok := registry[name]; !ok {
			missing = append(missing, MissingDependency{WorkflowKey: key, Kind: kind, Name: name})
		}
	}
	return missing
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
