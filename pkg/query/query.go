// Package query is the ad-hoc engine operated on decoded record
// sequences: free-text and fuzzy search, structured filters, grouped
// aggregations, stable multi-key sorting and pagination, in that fixed
// pipeline order. The engine never mutates its input; it returns new
// views over the same records.
package query

import (
	"fmt"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// Operator names a filter criterion's comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpBetween     Operator = "between"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
	OpIsEmpty     Operator = "isEmpty"
	OpIsNotEmpty  Operator = "isNotEmpty"
)

var validOperators = map[Operator]struct{}{
	OpEquals: {}, OpContains: {}, OpStartsWith: {}, OpEndsWith: {},
	OpGreaterThan: {}, OpLessThan: {}, OpBetween: {}, OpIn: {},
	OpNotIn: {}, OpIsEmpty: {}, OpIsNotEmpty: {},
}

// Filter is one criterion; criteria combine with AND semantics.
type Filter struct {
	Field    string
	Operator Operator

	// Value carries the operand for the single-operand operators.
	Value any

	// Values carries the operands for between (exactly two, low then
	// high) and for in/notIn (at least one).
	Values []any
}

// Direction orders a sort criterion.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Comparator is a custom ordering for one sort criterion. It reports
// <0, 0 or >0 for a before, equal, or a after b.
type Comparator func(a, b any) int

// Sort is one criterion of a multi-key sort; the first criterion is
// primary and ties fall through to the next.
type Sort struct {
	Field     string
	Direction Direction

	// Compare overrides the engine's default value ordering when set.
	Compare Comparator
}

// DefaultFuzzyThreshold is the minimum normalized edit-distance
// similarity for a fuzzy match.
const DefaultFuzzyThreshold = 0.6

// Search configures the free-text pass. An empty Fields list searches
// every attribute.
type Search struct {
	Query  string
	Fields []string

	// Fuzzy switches from substring matching to normalized
	// edit-distance similarity against Threshold (DefaultFuzzyThreshold
	// when zero).
	Fuzzy     bool
	Threshold float64

	// CaseSensitive turns off the default case folding for substring
	// matching.
	CaseSensitive bool
}

// AggregateOp names one aggregation computation.
type AggregateOp string

const (
	AggCount   AggregateOp = "count"
	AggSum     AggregateOp = "sum"
	AggAverage AggregateOp = "average"
	AggMin     AggregateOp = "min"
	AggMax     AggregateOp = "max"
	AggUnique  AggregateOp = "unique"
)

var validAggregateOps = map[AggregateOp]struct{}{
	AggCount: {}, AggSum: {}, AggAverage: {}, AggMin: {}, AggMax: {}, AggUnique: {},
}

// Aggregation computes operations over one field of the filtered set,
// optionally partitioned by a second field. A field appears at most once
// per query; its Operations list carries every computation wanted for it.
type Aggregation struct {
	Field      string
	Operations []AggregateOp
	GroupBy    string
}

// Pagination selects one page of the filtered and sorted sequence.
// Pages are 1-based.
type Pagination struct {
	Page     int
	PageSize int
}

// Options parameterize one Process call. The zero value passes records
// through untouched.
type Options struct {
	Search       *Search
	Filters      []Filter
	Aggregations []Aggregation
	Sorts        []Sort
	Pagination   *Pagination
}

// Result is one Process call's output. Aggregations are keyed by the
// aggregated field and reflect the full filtered set even when Data
// holds a single page of it.
type Result struct {
	Data          []record.Record
	TotalCount    int
	FilteredCount int
	Aggregations  map[string]AggregationResult
}

// AggregationResult holds the computed values for one aggregated field.
// Exactly one of Values and Groups is set, depending on GroupBy.
type AggregationResult struct {
	Field  string
	Values map[AggregateOp]any
	Groups map[string]map[AggregateOp]any
}

// validate rejects malformed options up front so the pipeline never has
// to guess at intent half-way through.
func (o Options) validate() error {
	for i, f := range o.Filters {
		if f.Field == "" {
			return fmt.Errorf("filter %d: field must not be empty", i)
		}
		if _, ok := validOperators[f.Operator]; !ok {
			return fmt.Errorf("filter %d: unknown operator %q", i, f.Operator)
		}
		switch f.Operator {
		case OpBetween:
			if len(f.Values) != 2 {
				return fmt.Errorf("filter %d: between needs exactly two values, got %d", i, len(f.Values))
			}
		case OpIn, OpNotIn:
			if len(f.Values) == 0 {
				return fmt.Errorf("filter %d: %s needs at least one value", i, f.Operator)
			}
		}
	}

	for i, s := range o.Sorts {
		if s.Field == "" {
			return fmt.Errorf("sort %d: field must not be empty", i)
		}
		if s.Direction != Ascending && s.Direction != Descending {
			return fmt.Errorf("sort %d: unknown direction %q", i, s.Direction)
		}
	}

	if s := o.Search; s != nil {
		if s.Threshold < 0 || s.Threshold > 1 {
			return fmt.Errorf("search: threshold %v outside [0, 1]", s.Threshold)
		}
	}

	aggregated := make(map[string]struct{}, len(o.Aggregations))
	for i, a := range o.Aggregations {
		if a.Field == "" {
			return fmt.Errorf("aggregation %d: field must not be empty", i)
		}
		if _, dup := aggregated[a.Field]; dup {
			return fmt.Errorf("aggregation %d: field %q aggregated more than once", i, a.Field)
		}
		aggregated[a.Field] = struct{}{}
		if len(a.Operations) == 0 {
			return fmt.Errorf("aggregation %d: at least one operation required", i)
		}
		for _, op := range a.Operations {
			if _, ok := validAggregateOps[op]; !ok {
				return fmt.Errorf("aggregation %d: unknown operation %q", i, op)
			}
		}
	}

	if p := o.Pagination; p != nil {
		if p.Page < 1 {
			return fmt.Errorf("pagination: page %d must be >= 1", p.Page)
		}
		if p.PageSize < 1 {
			return fmt.Errorf("pagination: page size %d must be >= 1", p.PageSize)
		}
	}

	return nil
}
