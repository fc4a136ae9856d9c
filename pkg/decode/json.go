package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// decodeJSON interprets data as a JSON array of objects. The gjson probe
// rejects non-JSON and non-array payloads before a full parse is paid
// for.
func decodeJSON(data []byte) ([]record.Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("not valid JSON")
	}
	if !gjson.ParseBytes(data).IsArray() {
		return nil, errors.New("top-level value is not an array")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var elements []any
	if err := dec.Decode(&elements); err != nil {
		return nil, fmt.Errorf("parsing array: %w", err)
	}

	recs := make([]record.Record, 0, len(elements))
	for i, el := range elements {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		rec := make(record.Record, len(obj))
		for k, v := range obj {
			rec[k] = normalizeJSONValue(v)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// normalizeJSONValue maps json.Number to int64 when integral and float64
// otherwise, recursing into nested containers.
func normalizeJSONValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if !strings.ContainsAny(val.String(), ".eE") {
			if n, err := val.Int64(); err == nil {
				return n
			}
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = normalizeJSONValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = normalizeJSONValue(nested)
		}
		return out
	default:
		return val
	}
}
