package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// Process runs the query pipeline over records: search first (most
// selective), then filters, then aggregations over the full filtered
// set, then the stable multi-key sort, and pagination last so a page
// never distorts the aggregates.
func Process(records []record.Record, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid query options: %w", err)
	}

	data := records
	if s := opts.Search; s != nil && s.Query != "" {
		data = applySearch(data, *s)
	}
	for _, f := range opts.Filters {
		data = applyFilter(data, f)
	}
	filteredCount := len(data)

	var aggregations map[string]AggregationResult
	if len(opts.Aggregations) > 0 {
		aggregations = make(map[string]AggregationResult, len(opts.Aggregations))
		for _, a := range opts.Aggregations {
			aggregations[a.Field] = aggregate(data, a)
		}
	}

	if len(opts.Sorts) > 0 {
		data = applySort(data, opts.Sorts)
	}

	if p := opts.Pagination; p != nil {
		data = page(data, *p)
	}

	return &Result{
		Data:          data,
		TotalCount:    len(records),
		FilteredCount: filteredCount,
		Aggregations:  aggregations,
	}, nil
}

func applyFilter(recs []record.Record, f Filter) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		if matchFilter(rec[f.Field], f) {
			out = append(out, rec)
		}
	}
	return out
}

func matchFilter(v any, f Filter) bool {
	switch f.Operator {
	case OpEquals:
		return equalValues(v, f.Value)
	case OpContains:
		return matchSubstring(v, f.Value, strings.Contains)
	case OpStartsWith:
		return matchSubstring(v, f.Value, strings.HasPrefix)
	case OpEndsWith:
		return matchSubstring(v, f.Value, strings.HasSuffix)
	case OpGreaterThan:
		return !record.IsNull(v) && compareValues(v, f.Value) > 0
	case OpLessThan:
		return !record.IsNull(v) && compareValues(v, f.Value) < 0
	case OpBetween:
		return !record.IsNull(v) &&
			compareValues(v, f.Values[0]) >= 0 &&
			compareValues(v, f.Values[1]) <= 0
	case OpIn:
		for _, candidate := range f.Values {
			if equalValues(v, candidate) {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, candidate := range f.Values {
			if equalValues(v, candidate) {
				return false
			}
		}
		return true
	case OpIsEmpty:
		return record.IsNull(v)
	case OpIsNotEmpty:
		return !record.IsNull(v)
	default:
		return false
	}
}

// matchSubstring applies a string predicate case-insensitively. Null
// and non-string values never match.
func matchSubstring(v, target any, pred func(s, substr string) bool) bool {
	if record.IsNull(v) {
		return false
	}
	s, ok := record.AsString(v)
	if !ok {
		return false
	}
	t, ok := record.AsString(target)
	if !ok {
		return false
	}
	return pred(strings.ToLower(s), strings.ToLower(t))
}

// equalValues compares across the canonical scalar set: numbers compare
// numerically regardless of int64/float64 spelling, strings exactly,
// everything else by type-matched equality. Null equals only null.
func equalValues(a, b any) bool {
	if record.IsNull(a) || record.IsNull(b) {
		return record.IsNull(a) && record.IsNull(b)
	}
	if fa, ok := record.AsFloat(a); ok {
		if fb, ok := record.AsFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if sa, ok := record.AsString(a); ok {
		sb, ok := record.AsString(b)
		return ok && sa == sb
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := record.AsTime(b)
		return ok && ta.Equal(tb)
	}
	return false
}

// compareValues is the engine's default ordering: null before any
// non-null, numbers numerically, timestamps chronologically, everything
// else as case-folded text.
func compareValues(a, b any) int {
	aNull, bNull := record.IsNull(a), record.IsNull(b)
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	}

	if fa, ok := record.AsFloat(a); ok {
		if fb, ok := record.AsFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	sa, sb := strings.ToLower(stringify(a)), strings.ToLower(stringify(b))
	return strings.Compare(sa, sb)
}

// stringify renders a value for text matching and grouping keys.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// applySort returns a stably sorted copy of the sequence; the input
// slice and its records are left untouched.
func applySort(recs []record.Record, sorts []Sort) []record.Record {
	out := make([]record.Record, len(recs))
	copy(out, recs)

	sort.SliceStable(out, func(i, j int) bool {
		for _, s := range sorts {
			cmp := compareValues
			if s.Compare != nil {
				cmp = s.Compare
			}
			c := cmp(out[i][s.Field], out[j][s.Field])
			if c == 0 {
				continue
			}
			if s.Direction == Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

// page slices out one 1-based page; pages past the end are empty, a
// partial final page is returned as-is.
func page(recs []record.Record, p Pagination) []record.Record {
	start := (p.Page - 1) * p.PageSize
	if start >= len(recs) {
		return []record.Record{}
	}
	end := start + p.PageSize
	if end > len(recs) {
		end = len(recs)
	}
	return recs[start:end]
}
