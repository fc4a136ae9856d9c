package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rosterkit/rosterkit/pkg/record"
)

func members() []record.Record {
	return []record.Record{
		{"id": "m-1", "lastName": "Bakker", "status": "Actief", "region": "North", "age": int64(34)},
		{"id": "m-2", "lastName": "Berg", "status": "Inactief", "region": "South", "age": int64(61)},
		{"id": "m-3", "lastName": "Visser", "status": "Actief", "region": "North", "age": int64(25)},
		{"id": "m-4", "lastName": "Smit", "status": "Actief", "region": "East", "age": nil},
		{"id": "m-5", "lastName": "Bakker", "status": "Opgezegd", "region": "South", "age": int64(47)},
	}
}

func ids(recs []record.Record) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.ID())
	}
	return out
}

func TestProcessPassthrough(t *testing.T) {
	res, err := Process(members(), Options{})
	require.NoError(t, err)
	require.Equal(t, 5, res.TotalCount)
	require.Equal(t, 5, res.FilteredCount)
	require.Equal(t, ids(members()), ids(res.Data))
	require.Nil(t, res.Aggregations)
}

func TestProcessEqualsFilterCounts(t *testing.T) {
	res, err := Process(members(), Options{
		Filters: []Filter{{Field: "status", Operator: OpEquals, Value: "Actief"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-3", "m-4"}, ids(res.Data))
	require.Equal(t, 3, res.FilteredCount)
	require.Equal(t, 5, res.TotalCount)
}

func TestFilterOperators(t *testing.T) {
	for _, tc := range []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{
			name:     "contains_is_case_insensitive",
			filter:   Filter{Field: "lastName", Operator: OpContains, Value: "AKK"},
			expected: []string{"m-1", "m-5"},
		},
		{
			name:     "starts_with",
			filter:   Filter{Field: "lastName", Operator: OpStartsWith, Value: "b"},
			expected: []string{"m-1", "m-2", "m-5"},
		},
		{
			name:     "ends_with",
			filter:   Filter{Field: "lastName", Operator: OpEndsWith, Value: "er"},
			expected: []string{"m-1", "m-3", "m-5"},
		},
		{
			name:     "greater_than_skips_null",
			filter:   Filter{Field: "age", Operator: OpGreaterThan, Value: int64(34)},
			expected: []string{"m-2", "m-5"},
		},
		{
			name:     "less_than_skips_null",
			filter:   Filter{Field: "age", Operator: OpLessThan, Value: 30},
			expected: []string{"m-3"},
		},
		{
			name:     "between_is_inclusive",
			filter:   Filter{Field: "age", Operator: OpBetween, Values: []any{25, 47}},
			expected: []string{"m-1", "m-3", "m-5"},
		},
		{
			name:     "in",
			filter:   Filter{Field: "region", Operator: OpIn, Values: []any{"North", "East"}},
			expected: []string{"m-1", "m-3", "m-4"},
		},
		{
			name:     "not_in",
			filter:   Filter{Field: "region", Operator: OpNotIn, Values: []any{"North"}},
			expected: []string{"m-2", "m-4", "m-5"},
		},
		{
			name:     "is_empty",
			filter:   Filter{Field: "age", Operator: OpIsEmpty},
			expected: []string{"m-4"},
		},
		{
			name:     "is_not_empty",
			filter:   Filter{Field: "age", Operator: OpIsNotEmpty},
			expected: []string{"m-1", "m-2", "m-3", "m-5"},
		},
		{
			name:     "null_never_matches_contains",
			filter:   Filter{Field: "age", Operator: OpContains, Value: "3"},
			expected: []string{},
		},
		{
			name:     "equals_numeric_across_int_and_float",
			filter:   Filter{Field: "age", Operator: OpEquals, Value: 34.0},
			expected: []string{"m-1"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Process(members(), Options{Filters: []Filter{tc.filter}})
			require.NoError(t, err)
			require.Equal(t, tc.expected, ids(res.Data))
		})
	}
}

func TestFiltersCombineWithAndSemantics(t *testing.T) {
	res, err := Process(members(), Options{
		Filters: []Filter{
			{Field: "status", Operator: OpEquals, Value: "Actief"},
			{Field: "region", Operator: OpEquals, Value: "North"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-3"}, ids(res.Data))
}

func TestSortStability(t *testing.T) {
	// m-1 and m-5 share a last name; their input order must survive.
	res, err := Process(members(), Options{
		Sorts: []Sort{{Field: "lastName", Direction: Ascending}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-5", "m-2", "m-4", "m-3"}, ids(res.Data))
}

func TestSortNullsFirst(t *testing.T) {
	res, err := Process(members(), Options{
		Sorts: []Sort{{Field: "age", Direction: Ascending}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-4", "m-3", "m-1", "m-5", "m-2"}, ids(res.Data))

	desc, err := Process(members(), Options{
		Sorts: []Sort{{Field: "age", Direction: Descending}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-2", "m-5", "m-1", "m-3", "m-4"}, ids(desc.Data))
}

func TestMultiKeySort(t *testing.T) {
	res, err := Process(members(), Options{
		Sorts: []Sort{
			{Field: "status", Direction: Ascending},
			{Field: "age", Direction: Descending},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-3", "m-4", "m-2", "m-5"}, ids(res.Data))
}

func TestSortWithCustomComparator(t *testing.T) {
	// Order regions by compass custom rank instead of alphabetically.
	rank := map[string]int{"North": 0, "East": 1, "South": 2}
	res, err := Process(members(), Options{
		Sorts: []Sort{{
			Field:     "region",
			Direction: Ascending,
			Compare: func(a, b any) int {
				ra, _ := a.(string)
				rb, _ := b.(string)
				return rank[ra] - rank[rb]
			},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-3", "m-4", "m-2", "m-5"}, ids(res.Data))
}

func TestSortDoesNotMutateInput(t *testing.T) {
	in := members()
	_, err := Process(in, Options{Sorts: []Sort{{Field: "age", Direction: Descending}}})
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(members(), in))
}

func TestSearchSubstring(t *testing.T) {
	res, err := Process(members(), Options{
		Search: &Search{Query: "bakker", Fields: []string{"lastName"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-5"}, ids(res.Data))
}

func TestSearchCaseSensitive(t *testing.T) {
	res, err := Process(members(), Options{
		Search: &Search{Query: "bakker", Fields: []string{"lastName"}, CaseSensitive: true},
	})
	require.NoError(t, err)
	require.Empty(t, res.Data)
}

func TestSearchAllFieldsWhenNoneGiven(t *testing.T) {
	res, err := Process(members(), Options{
		Search: &Search{Query: "opgezegd"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-5"}, ids(res.Data))
}

func TestSearchFuzzy(t *testing.T) {
	// One-letter typo: "Baker" vs "Bakker".
	res, err := Process(members(), Options{
		Search: &Search{Query: "baker", Fields: []string{"lastName"}, Fuzzy: true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-5"}, ids(res.Data))

	// The same query without fuzzy finds nothing.
	exact, err := Process(members(), Options{
		Search: &Search{Query: "baker", Fields: []string{"lastName"}},
	})
	require.NoError(t, err)
	require.Empty(t, exact.Data)
}

func TestSearchFuzzyThreshold(t *testing.T) {
	strict, err := Process(members(), Options{
		Search: &Search{Query: "baker", Fields: []string{"lastName"}, Fuzzy: true, Threshold: 0.99},
	})
	require.NoError(t, err)
	require.Empty(t, strict.Data)
}

func TestSearchRunsBeforeFilters(t *testing.T) {
	res, err := Process(members(), Options{
		Search:  &Search{Query: "bakker", Fields: []string{"lastName"}},
		Filters: []Filter{{Field: "status", Operator: OpEquals, Value: "Actief"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1"}, ids(res.Data))
	require.Equal(t, 1, res.FilteredCount)
	require.Equal(t, 5, res.TotalCount)
}

func TestAggregations(t *testing.T) {
	res, err := Process(members(), Options{
		Aggregations: []Aggregation{{
			Field:      "age",
			Operations: []AggregateOp{AggCount, AggSum, AggAverage, AggMin, AggMax, AggUnique},
		}},
	})
	require.NoError(t, err)

	agg := res.Aggregations["age"]
	require.Equal(t, int64(5), agg.Values[AggCount], "count covers all records, null ages included")
	require.InDelta(t, 167.0, agg.Values[AggSum], 1e-9)
	require.InDelta(t, 41.75, agg.Values[AggAverage], 1e-9, "average covers the four non-null ages")
	require.Equal(t, int64(25), agg.Values[AggMin], "min returns the winning value as stored")
	require.Equal(t, int64(61), agg.Values[AggMax])
	require.Equal(t, int64(4), agg.Values[AggUnique])
}

func TestAggregationMinMaxOrderNonNumericColumns(t *testing.T) {
	res, err := Process(members(), Options{
		Aggregations: []Aggregation{{
			Field:      "lastName",
			Operations: []AggregateOp{AggMin, AggMax},
		}},
	})
	require.NoError(t, err)
	agg := res.Aggregations["lastName"]
	require.Equal(t, "Bakker", agg.Values[AggMin])
	require.Equal(t, "Visser", agg.Values[AggMax])

	first := time.Date(2012, 9, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	res, err = Process([]record.Record{
		{"id": "m-1", "joinedAt": last},
		{"id": "m-2", "joinedAt": first},
		{"id": "m-3", "joinedAt": nil},
	}, Options{
		Aggregations: []Aggregation{{
			Field:      "joinedAt",
			Operations: []AggregateOp{AggMin, AggMax},
		}},
	})
	require.NoError(t, err)
	agg = res.Aggregations["joinedAt"]
	require.Equal(t, first, agg.Values[AggMin])
	require.Equal(t, last, agg.Values[AggMax])
}

func TestAggregationGroupBy(t *testing.T) {
	res, err := Process(members(), Options{
		Aggregations: []Aggregation{{
			Field:      "age",
			Operations: []AggregateOp{AggCount, AggAverage},
			GroupBy:    "region",
		}},
	})
	require.NoError(t, err)

	groups := res.Aggregations["age"].Groups
	require.Len(t, groups, 3)
	require.Equal(t, int64(2), groups["North"][AggCount])
	require.InDelta(t, 29.5, groups["North"][AggAverage], 1e-9)
	require.Equal(t, int64(2), groups["South"][AggCount])
	require.Equal(t, int64(1), groups["East"][AggCount])
	require.Nil(t, groups["East"][AggAverage], "a group with only null values has no average")
}

func TestAggregationEmptyFilteredSet(t *testing.T) {
	res, err := Process(members(), Options{
		Filters: []Filter{{Field: "status", Operator: OpEquals, Value: "Verlopen"}},
		Aggregations: []Aggregation{{
			Field:      "age",
			Operations: []AggregateOp{AggCount, AggSum, AggMin},
		}},
	})
	require.NoError(t, err)
	agg := res.Aggregations["age"]
	require.Equal(t, int64(0), agg.Values[AggCount])
	require.Equal(t, 0.0, agg.Values[AggSum])
	require.Nil(t, agg.Values[AggMin])
}

func TestPagination(t *testing.T) {
	recs := make([]record.Record, 25)
	for i := range recs {
		recs[i] = record.Record{"id": fmt.Sprintf("m-%02d", i), "seq": int64(i)}
	}

	res, err := Process(recs, Options{
		Sorts:      []Sort{{Field: "seq", Direction: Ascending}},
		Pagination: &Pagination{Page: 2, PageSize: 10},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 10)
	require.Equal(t, "m-10", res.Data[0].ID())
	require.Equal(t, "m-19", res.Data[9].ID())
	require.Equal(t, 25, res.FilteredCount)

	partial, err := Process(recs, Options{Pagination: &Pagination{Page: 3, PageSize: 10}})
	require.NoError(t, err)
	require.Len(t, partial.Data, 5)

	beyond, err := Process(recs, Options{Pagination: &Pagination{Page: 4, PageSize: 10}})
	require.NoError(t, err)
	require.Empty(t, beyond.Data)
}

// Aggregates must reflect the full filtered set, not the returned page.
func TestAggregationsIgnorePagination(t *testing.T) {
	res, err := Process(members(), Options{
		Filters: []Filter{{Field: "age", Operator: OpIsNotEmpty}},
		Aggregations: []Aggregation{{
			Field:      "age",
			Operations: []AggregateOp{AggCount, AggSum},
		}},
		Sorts:      []Sort{{Field: "age", Direction: Ascending}},
		Pagination: &Pagination{Page: 1, PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	require.Equal(t, 4, res.FilteredCount)
	require.Equal(t, int64(4), res.Aggregations["age"].Values[AggCount])
	require.InDelta(t, 167.0, res.Aggregations["age"].Values[AggSum], 1e-9)
}

func TestProcessRejectsInvalidOptions(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Options
	}{
		{"unknown_operator", Options{Filters: []Filter{{Field: "status", Operator: "matches"}}}},
		{"empty_filter_field", Options{Filters: []Filter{{Operator: OpEquals}}}},
		{"between_with_one_value", Options{Filters: []Filter{{Field: "age", Operator: OpBetween, Values: []any{1}}}}},
		{"in_without_values", Options{Filters: []Filter{{Field: "region", Operator: OpIn}}}},
		{"unknown_direction", Options{Sorts: []Sort{{Field: "age", Direction: "sideways"}}}},
		{"threshold_out_of_range", Options{Search: &Search{Query: "x", Threshold: 1.5}}},
		{"unknown_aggregate_op", Options{Aggregations: []Aggregation{{Field: "age", Operations: []AggregateOp{"median"}}}}},
		{"aggregation_without_ops", Options{Aggregations: []Aggregation{{Field: "age"}}}},
		{"duplicate_aggregation_field", Options{Aggregations: []Aggregation{
			{Field: "age", Operations: []AggregateOp{AggCount}},
			{Field: "age", Operations: []AggregateOp{AggSum}, GroupBy: "region"},
		}}},
		{"zero_page", Options{Pagination: &Pagination{Page: 0, PageSize: 10}}},
		{"zero_page_size", Options{Pagination: &Pagination{Page: 1, PageSize: 0}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Process(members(), tc.opts)
			require.Error(t, err)
		})
	}
}
