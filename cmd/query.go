package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rosterkit/rosterkit/cmd/util"
	"github.com/rosterkit/rosterkit/internal/service"
	"github.com/rosterkit/rosterkit/pkg/identity"
	"github.com/rosterkit/rosterkit/pkg/loader"
	"github.com/rosterkit/rosterkit/pkg/query"
)

// NewQueryCommand returns the command that loads a dataset source and
// runs an ad-hoc query over it.
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <source>",
		Short: "Load a membership dataset source and run a query over it",
		Long: `Load a membership dataset source and run filters, sorting, free-text
search, aggregations and pagination over the visible records.

Criterion syntax:
  --filter     field:operator[:value]     e.g. status:equals:Actief,
               in/notIn take '|'-separated values: region:in:North|South
  --sort       field:asc|desc             repeatable, first one is primary
  --aggregate  field:op[,op...][:groupBy] e.g. age:average,max:region`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}
	bindPipelineFlags(cmd)

	flags := cmd.Flags()
	flags.StringArray("filter", nil, "a filter criterion (repeatable, AND semantics)")
	util.MustBindPFlag("query.filters", flags.Lookup("filter"))
	flags.StringArray("sort", nil, "a sort criterion (repeatable)")
	util.MustBindPFlag("query.sorts", flags.Lookup("sort"))
	flags.StringArray("aggregate", nil, "an aggregation over the filtered set (repeatable)")
	util.MustBindPFlag("query.aggregations", flags.Lookup("aggregate"))
	flags.String("search", "", "a free-text query over the records")
	util.MustBindPFlag("query.search", flags.Lookup("search"))
	flags.StringSlice("search-field", nil, "restrict the search to these fields (default: all)")
	util.MustBindPFlag("query.search-fields", flags.Lookup("search-field"))
	flags.Bool("fuzzy", false, "use fuzzy (edit-distance) matching for the search")
	util.MustBindPFlag("query.fuzzy", flags.Lookup("fuzzy"))
	flags.Float64("fuzzy-threshold", query.DefaultFuzzyThreshold, "the minimum similarity for a fuzzy match")
	util.MustBindPFlag("query.fuzzy-threshold", flags.Lookup("fuzzy-threshold"))
	flags.Int("page", 0, "the 1-based page to return (0 returns everything)")
	util.MustBindPFlag("query.page", flags.Lookup("page"))
	flags.Int("page-size", 50, "the number of records per page")
	util.MustBindPFlag("query.page-size", flags.Lookup("page-size"))

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	opts, err := queryOptionsFromViper()
	if err != nil {
		return err
	}

	svc, err := service.New(configFromViper())
	if err != nil {
		return err
	}
	defer svc.Close()

	id := identity.New(viper.GetStringSlice("identity.tokens")...)
	loadOpts := loader.Options{
		DeriveFields:      viper.GetBool("load.derive-fields"),
		RegionalFiltering: viper.GetBool("load.regional-filtering"),
	}

	loaded, err := svc.Loader.Load(cmd.Context(), args[0], id, loadOpts)
	if err != nil {
		return err
	}

	res, err := query.Process(loaded.Records, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		TotalCount    int                                `json:"totalCount"`
		FilteredCount int                                `json:"filteredCount"`
		Aggregations  map[string]query.AggregationResult `json:"aggregations,omitempty"`
		Data          any                                `json:"data"`
	}{
		TotalCount:    res.TotalCount,
		FilteredCount: res.FilteredCount,
		Aggregations:  res.Aggregations,
		Data:          res.Data,
	})
}

func queryOptionsFromViper() (query.Options, error) {
	var opts query.Options

	for _, raw := range viper.GetStringSlice("query.filters") {
		f, err := parseFilterFlag(raw)
		if err != nil {
			return opts, err
		}
		opts.Filters = append(opts.Filters, f)
	}
	for _, raw := range viper.GetStringSlice("query.sorts") {
		s, err := parseSortFlag(raw)
		if err != nil {
			return opts, err
		}
		opts.Sorts = append(opts.Sorts, s)
	}
	for _, raw := range viper.GetStringSlice("query.aggregations") {
		a, err := parseAggregationFlag(raw)
		if err != nil {
			return opts, err
		}
		opts.Aggregations = append(opts.Aggregations, a)
	}

	if q := viper.GetString("query.search"); q != "" {
		opts.Search = &query.Search{
			Query:     q,
			Fields:    viper.GetStringSlice("query.search-fields"),
			Fuzzy:     viper.GetBool("query.fuzzy"),
			Threshold: viper.GetFloat64("query.fuzzy-threshold"),
		}
	}

	if page := viper.GetInt("query.page"); page > 0 {
		opts.Pagination = &query.Pagination{
			Page:     page,
			PageSize: viper.GetInt("query.page-size"),
		}
	}

	return opts, nil
}

// parseFilterFlag parses "field:operator[:value]". in and notIn take
// '|'-separated values, between takes exactly two.
func parseFilterFlag(raw string) (query.Filter, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return query.Filter{}, fmt.Errorf("filter %q: expected field:operator[:value]", raw)
	}

	f := query.Filter{
		Field:    strings.TrimSpace(parts[0]),
		Operator: query.Operator(strings.TrimSpace(parts[1])),
	}

	switch f.Operator {
	case query.OpIsEmpty, query.OpIsNotEmpty:
		if len(parts) == 3 && parts[2] != "" {
			return query.Filter{}, fmt.Errorf("filter %q: %s takes no value", raw, f.Operator)
		}
	case query.OpBetween, query.OpIn, query.OpNotIn:
		if len(parts) < 3 {
			return query.Filter{}, fmt.Errorf("filter %q: %s needs values", raw, f.Operator)
		}
		for _, v := range strings.Split(parts[2], "|") {
			f.Values = append(f.Values, literalValue(v))
		}
	default:
		if len(parts) < 3 {
			return query.Filter{}, fmt.Errorf("filter %q: %s needs a value", raw, f.Operator)
		}
		f.Value = literalValue(parts[2])
	}
	return f, nil
}

// parseSortFlag parses "field[:asc|desc]"; ascending is the default.
func parseSortFlag(raw string) (query.Sort, error) {
	parts := strings.SplitN(raw, ":", 2)
	s := query.Sort{
		Field:     strings.TrimSpace(parts[0]),
		Direction: query.Ascending,
	}
	if len(parts) == 2 {
		s.Direction = query.Direction(strings.TrimSpace(parts[1]))
	}
	if s.Direction != query.Ascending && s.Direction != query.Descending {
		return query.Sort{}, fmt.Errorf("sort %q: direction must be %q or %q", raw, query.Ascending, query.Descending)
	}
	return s, nil
}

// parseAggregationFlag parses "field:op[,op...][:groupByField]".
func parseAggregationFlag(raw string) (query.Aggregation, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return query.Aggregation{}, fmt.Errorf("aggregation %q: expected field:op[,op...][:groupBy]", raw)
	}

	a := query.Aggregation{Field: strings.TrimSpace(parts[0])}
	for _, op := range strings.Split(parts[1], ",") {
		a.Operations = append(a.Operations, query.AggregateOp(strings.TrimSpace(op)))
	}
	if len(parts) == 3 {
		a.GroupBy = strings.TrimSpace(parts[2])
	}
	return a, nil
}

// literalValue types a flag operand the way the delimited decoder types
// cells: int64, float64, bool, else string.
func literalValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
