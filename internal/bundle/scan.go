package bundle

import "sort"

// ScanDependencies walks workflow content documents (a draft plus any number
// of published version contents) and collects the external names they
// reference:
//
//   - the "type" of each element of a "nodes" array → node types
//   - any "action" string value → action identifiers
//   - any "schemaRef" string value → schema references
//
// Names are deduplicated across all documents and returned sorted so the
// summary itself is deterministic.
func ScanDependencies(docs ...map[string]interface{}) DependencySummary {
	s := &depScanner{
		actions:    map[string]struct{}{},
		nodeTypes:  map[string]struct{}{},
		schemaRefs: map[string]struct{}{},
	}
	for _, doc := range docs {
		s.walkMap(doc, false)
	}
	return DependencySummary{
		Actions:    sortedNames(s.actions),
		NodeTypes:  sortedNames(s.nodeTypes),
		SchemaRefs: sortedNames(s.schemaRefs),
	}
}

type depScanner struct {
	actions    map[string]struct{}
	nodeTypes  map[string]struct{}
	schemaRefs map[string]struct{}
}

func (s *depScanner) walkMap(m map[string]interface{}, isNode bool) {
	if isNode {
		if typ, ok := m["type"].(string); ok && typ != "" {
			s.nodeTypes[typ] = struct{}{}
		}
	}
	for key, val := range m {
		switch key {
		case "action":
			if name, ok := val.(string); ok && name != "" {
				s.actions[name] = struct{}{}
				continue
			}
		case "schemaRef":
			if ref, ok := val.(string); ok && ref != "" {
				s.schemaRefs[ref] = struct{}{}
				continue
			}
		case "nodes":
			if arr, ok := val.([]interface{}); ok {
				for _, elem := range arr {
					if node, ok := elem.(map[string]interface{}); ok {
						s.walkMap(node, true)
					} else {
						s.walkValue(elem)
					}
				}
				continue
			}
		}
		s.walkValue(val)
	}
}

func (s *depScanner) walkValue(v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		s.walkMap(val, false)
	case []interface{}:
		for _, elem := range val {
			s.walkValue(elem)
		}
	}
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
