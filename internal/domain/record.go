package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NumField is the key the pipeline attaches to every committed record.
const NumField = "num"

// Record is a classification result kept as generic JSON until it has been
// validated, so that a malformed model answer can still be shown for repair.
type Record map[string]any

// Classification is the typed view of a validated Record.
type Classification struct {
	Type   string   `json:"type"`
	Reason string   `json:"reason"`
	MCP    []string `json:"mcp"`
	Num    int      `json:"num,omitempty"`
}

// WithNum returns a copy of r carrying the post number.
func (r Record) WithNum(num int) Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[NumField] = num
	return out
}

// Num reports the attached post number, if any.
func (r Record) Num() (int, bool) {
	switch v := r[NumField].(type) {
	case int:
		return v, true
	case float64:
		return int(v), v == float64(int(v))
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

// Classification decodes the typed view of r.
func (r Record) Classification() (Classification, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return Classification{}, fmt.Errorf("marshal record: %w", err)
	}
	var c Classification
	if err := json.Unmarshal(raw, &c); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	return c, nil
}

// Encode renders r as indented JSON without escaping HTML or non-ASCII text.
func (r Record) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeRecord parses data as a single JSON object. Numbers are kept as
// json.Number so that integers survive a round trip unchanged.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if rest := bytes.TrimSpace(data[dec.InputOffset():]); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", jsonKind(v))
	}
	return Record(obj), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
