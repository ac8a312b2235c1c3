package bundle

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the published JSON Schema contract for the bundle shape at
// the current format version. Consumers can fetch it to check a bundle
// offline; the authoritative structural check stays in the validate package.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&Bundle{})
	s.Title = "workflow-bundle"
	s.Description = "Portable export bundle of workflow definitions and their published versions."
	return json.MarshalIndent(s, "", "  ")
}
