package query

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// applySearch keeps the records where any searched field matches the
// query: substring matching by default, normalized edit-distance
// similarity when fuzzy is on.
func applySearch(recs []record.Record, s Search) []record.Record {
	threshold := s.Threshold
	if threshold == 0 {
		threshold = DefaultFuzzyThreshold
	}

	query := s.Query
	if !s.CaseSensitive {
		query = strings.ToLower(query)
	}

	out := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		if matchesSearch(rec, s.Fields, query, s.Fuzzy, threshold, s.CaseSensitive) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesSearch(rec record.Record, fields []string, query string, fuzzy bool, threshold float64, caseSensitive bool) bool {
	if len(fields) == 0 {
		for _, v := range rec {
			if matchesValue(v, query, fuzzy, threshold, caseSensitive) {
				return true
			}
		}
		return false
	}
	for _, field := range fields {
		if matchesValue(rec[field], query, fuzzy, threshold, caseSensitive) {
			return true
		}
	}
	return false
}

func matchesValue(v any, query string, fuzzy bool, threshold float64, caseSensitive bool) bool {
	if record.IsNull(v) {
		return false
	}
	text := stringify(v)
	if !caseSensitive {
		text = strings.ToLower(text)
	}

	if strings.Contains(text, query) {
		return true
	}
	if !fuzzy {
		return false
	}

	// A fuzzy query matches the whole value or any single word of it, so
	// a one-letter typo in a last name still finds the member.
	if similarity(query, text) >= threshold {
		return true
	}
	for _, word := range strings.Fields(text) {
		if similarity(query, word) >= threshold {
			return true
		}
	}
	return false
}

// similarity is 1 minus the edit distance normalized by the longer
// string: 1 for identical strings, 0 for nothing in common.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
