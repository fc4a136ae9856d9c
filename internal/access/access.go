// Package access enforces the regional visibility policy on membership
// records. The filter must fail closed: any internal fault during
// evaluation yields an empty result rather than partially filtered data.
package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rosterkit/rosterkit/internal/build"
	"github.com/rosterkit/rosterkit/pkg/identity"
	"github.com/rosterkit/rosterkit/pkg/record"
)

var (
	filterTotalCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "regional_filter_total_count",
		Help:      "The total number of regional filter evaluations.",
	})

	filterFailClosedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "regional_filter_fail_closed_count",
		Help:      "The total number of regional filter evaluations that failed closed.",
	})
)

// regionOf is swappable so tests can inject evaluation faults.
var regionOf = func(r record.Record) (string, bool) {
	return r.Region()
}

// VisibleRecords returns the subset of recs the caller may see, in input
// order.
//
// Callers with global access (admin or the all-regions token) see every
// record. Callers with specific region grants see records whose region
// matches a grant; records without a region are dropped for them. Callers
// with no region grants see nothing, unless they hold the explicit
// read-all permission.
//
// Any panic during evaluation is converted into an empty result.
func VisibleRecords(recs []record.Record, id identity.Identity) (out []record.Record) {
	filterTotalCounter.Inc()

	defer func() {
		if r := recover(); r != nil {
			filterFailClosedCounter.Inc()
			out = []record.Record{}
		}
	}()

	if id.HasGlobalAccess() {
		return recs
	}

	allowed := id.Regions()
	if len(allowed) == 0 {
		if id.HasReadAll() {
			return recs
		}
		return []record.Record{}
	}

	grants := make(map[string]struct{}, len(allowed))
	for _, region := range allowed {
		grants[region] = struct{}{}
	}

	out = make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		region, ok := regionOf(rec)
		if !ok {
			continue
		}
		if _, ok := grants[region]; ok {
			out = append(out, rec)
		}
	}
	return out
}
