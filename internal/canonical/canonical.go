// Package canonical implements the deterministic JSON encoding used for
// workflow bundles: object keys sorted lexicographically, two-space
// indentation, and exactly one trailing newline. Two structurally equal
// values encode to identical bytes regardless of how they were built.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

const indent = "  "

// Marshal encodes any JSON-compatible value canonically.
//
// The value is first round-tripped through encoding/json with number
// preservation, so struct tags apply and numbers keep their literal form
// (integers and plain decimal fractions never pick up exponent notation or
// float artifacts on the way through).
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return MarshalRaw(raw)
}

// MarshalRaw re-encodes an existing JSON document canonically.
func MarshalRaw(raw []byte) ([]byte, error) {
	val, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, val, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode parses a JSON document into generic Go values with numbers kept as
// json.Number, which is what the validators and the encoder both operate on.
func Decode(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var val interface{}
	if err := dec.Decode(&val); err != nil {
		return nil, err
	}
	// Reject trailing garbage after the document.
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON document")
	}
	return val, nil
}

func encode(buf *bytes.Buffer, v interface{}, depth int) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		return encodeString(buf, val)
	case []interface{}:
		return encodeArray(buf, val, depth)
	case map[string]interface{}:
		return encodeObject(buf, val, depth)
	default:
		return fmt.Errorf("unsupported value of type %T", v)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	// Delegate escaping to encoding/json; its output for strings is stable.
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// encodeArray keeps element order: order is semantic for arrays and is never
// rewritten.
func encodeArray(buf *bytes.Buffer, arr []interface{}, depth int) error {
	if len(arr) == 0 {
		buf.WriteString("[]")
		return nil
	}
	buf.WriteString("[\n")
	for i, elem := range arr {
		writeIndent(buf, depth+1)
		if err := encode(buf, elem, depth+1); err != nil {
			return err
		}
		if i < len(arr)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	writeIndent(buf, depth)
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]interface{}, depth int) error {
	if len(obj) == 0 {
		buf.WriteString("{}")
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteString("{\n")
	for i, k := range keys {
		writeIndent(buf, depth+1)
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteString(": ")
		if err := encode(buf, obj[k], depth+1); err != nil {
			return err
		}
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	writeIndent(buf, depth)
	buf.WriteByte('}')
	return nil
}

func writeIndent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString(indent)
	}
}
