package query

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// groupNone collects records whose group-by field is null.
const groupNone = "(none)"

// aggregate computes one Aggregation over the full filtered set. With
// GroupBy set the set is partitioned by the stringified group field
// first and every operation runs per partition.
func aggregate(recs []record.Record, a Aggregation) AggregationResult {
	if a.GroupBy == "" {
		return AggregationResult{
			Field:  a.Field,
			Values: computeOps(recs, a.Field, a.Operations),
		}
	}

	groups := make(map[string][]record.Record)
	for _, rec := range recs {
		key := groupNone
		if v := rec[a.GroupBy]; !record.IsNull(v) {
			key = stringify(v)
		}
		groups[key] = append(groups[key], rec)
	}

	out := AggregationResult{
		Field:  a.Field,
		Groups: make(map[string]map[AggregateOp]any, len(groups)),
	}
	for key, members := range groups {
		out.Groups[key] = computeOps(members, a.Field, a.Operations)
	}
	return out
}

func computeOps(recs []record.Record, field string, ops []AggregateOp) map[AggregateOp]any {
	numbers := make([]float64, 0, len(recs))
	for _, rec := range recs {
		if f, ok := record.AsFloat(rec[field]); ok {
			numbers = append(numbers, f)
		}
	}

	out := make(map[AggregateOp]any, len(ops))
	for _, op := range ops {
		switch op {
		case AggCount:
			out[op] = int64(len(recs))
		case AggSum:
			out[op] = floats.Sum(numbers)
		case AggAverage:
			if len(numbers) == 0 {
				out[op] = nil
				continue
			}
			out[op] = stat.Mean(numbers, nil)
		case AggMin, AggMax:
			out[op] = extremum(recs, field, op)
		case AggUnique:
			seen := make(map[string]struct{}, len(recs))
			for _, rec := range recs {
				if v := rec[field]; !record.IsNull(v) {
					seen[stringify(v)] = struct{}{}
				}
			}
			out[op] = int64(len(seen))
		}
	}
	return out
}

// extremum folds the field's non-null values with the engine's default
// ordering, so string and timestamp columns aggregate alongside numeric
// ones. The winning value is returned as-is; nil when every value is null.
func extremum(recs []record.Record, field string, op AggregateOp) any {
	var best any
	for _, rec := range recs {
		v := rec[field]
		if record.IsNull(v) {
			continue
		}
		if best == nil {
			best = v
			continue
		}
		c := compareValues(v, best)
		if (op == AggMin && c < 0) || (op == AggMax && c > 0) {
			best = v
		}
	}
	return best
}
