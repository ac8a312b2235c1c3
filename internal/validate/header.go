package validate

import (
	"encoding/json"
	"fmt"

	"flowport/backend/internal/bundle"
)

// Header checks the bundle's format declaration and nothing else. It fails
// fast with an UnsupportedFormatError naming the offending values; no schema
// walk happens here and no migration of other versions is attempted.
func Header(doc interface{}) error {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return &UnsupportedFormatError{Format: "", Version: ""}
	}

	format, _ := obj["format"].(string)
	version := renderVersion(obj["formatVersion"])

	if format != bundle.FormatName || !isAcceptedVersion(obj["formatVersion"]) {
		return &UnsupportedFormatError{Format: format, Version: version}
	}
	return nil
}

func isAcceptedVersion(v interface{}) bool {
	num, ok := v.(json.Number)
	if !ok {
		return false
	}
	n, err := num.Int64()
	return err == nil && n == bundle.FormatVersion
}

func renderVersion(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<missing>"
	case json.Number:
		return val.String()
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
