// Package record defines the membership record shape shared by the whole
// pipeline: a flat mapping of named attributes as produced by the decoder,
// plus the derived attributes computed from them.
//
// After decoding, attribute values are restricted to the canonical scalar set
// nil, bool, int64, float64, string and time.Time. Derived attributes are
// never persisted; they are recomputed from the raw attributes on every load.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
)

// Raw attribute names the pipeline understands. Datasets may carry any number
// of additional attributes; these are the ones derivation and regional
// filtering key on.
const (
	FieldID           = "id"
	FieldFirstName    = "firstName"
	FieldInfix        = "infix"
	FieldLastName     = "lastName"
	FieldBirthDate    = "birthDate"
	FieldRegisteredAt = "registeredAt"
	FieldRegion       = "region"
	FieldStatus       = "status"
	FieldEmail        = "email"
)

// Derived attribute names, written by Derive and stripped by RawPortion.
const (
	FieldDisplayName      = "displayName"
	FieldAge              = "age"
	FieldMembershipYears  = "membershipYears"
	FieldRegistrationYear = "registrationYear"
)

var derivedFields = map[string]struct{}{
	FieldDisplayName:      {},
	FieldAge:              {},
	FieldMembershipYears:  {},
	FieldRegistrationYear: {},
}

// IsDerivedField reports whether name is one of the computed attributes.
func IsDerivedField(name string) bool {
	_, ok := derivedFields[name]
	return ok
}

// Record is one membership entity: a mapping of attribute name to value.
// A nil or absent value both mean "no value".
type Record map[string]any

// ID returns the record's stable identifier rendered as a string, or ""
// when the record carries none.
func (r Record) ID() string {
	v, ok := r[FieldID]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case int64:
		return fmt.Sprintf("%d", id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", id)
	}
}

// Region returns the record's region attribute, trimmed, and whether the
// record carries a non-empty one.
func (r Record) Region() (string, bool) {
	s, ok := AsString(r[FieldRegion])
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

// Clone returns a deep copy of the record. Scalars are copied by value;
// nested maps and slices (tolerated pass-through from permissive decoders)
// are copied recursively so the clone shares no mutable state with r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := maps.Clone(r)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

// RawPortion returns a copy of the record with every derived attribute
// removed, leaving exactly the decoded source attributes.
func (r Record) RawPortion() Record {
	out := r.Clone()
	for name := range derivedFields {
		delete(out, name)
	}
	return out
}

// CloneAll deep-copies a record sequence. The result shares no memory with
// the input, so cache snapshots and results shared across goroutines can be
// handed out safely.
func CloneAll(recs []Record) []Record {
	if recs == nil {
		return nil
	}
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = cloneValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return val
	}
}
