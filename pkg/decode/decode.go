// Package decode turns opaque byte buffers into membership records.
//
// The decoder tries an ordered list of strategies and stops at the first
// one that succeeds: a JSON array, the RCT1 binary columnar container,
// and finally delimited text for producers that can emit nothing richer.
// When every strategy fails, the returned *Error lists each attempt and
// its reason. The decoder never filters or derives fields; it is
// format-agnostic and stateless.
package decode

import (
	"fmt"
	"strings"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// Strategy names as reported in Error.Attempts.
const (
	StrategyJSON      = "json"
	StrategyColumnar  = "columnar"
	StrategyDelimited = "delimited"
)

// A strategy attempts to interpret raw bytes as a record sequence. It
// either returns the full sequence or an error explaining why the bytes
// are not its format.
type strategy struct {
	name   string
	decode func(data []byte) ([]record.Record, error)
}

// strategies in probe order: JSON first (cheap probe), then the columnar
// container (magic check), then delimited text as the last resort.
func strategies() []strategy {
	return []strategy{
		{name: StrategyJSON, decode: decodeJSON},
		{name: StrategyColumnar, decode: decodeColumnar},
		{name: StrategyDelimited, decode: decodeDelimited},
	}
}

// Decode interprets data as a sequence of raw records. The name is a
// source hint used in diagnostics only; it never influences strategy
// order.
func Decode(data []byte, name string) ([]record.Record, error) {
	attempts := make([]Attempt, 0, 3)
	for _, s := range strategies() {
		recs, err := s.decode(data)
		if err == nil {
			return recs, nil
		}
		attempts = append(attempts, Attempt{Strategy: s.name, Err: err})
	}
	return nil, &Error{Source: name, Attempts: attempts}
}

// Attempt records one strategy's failure reason.
type Attempt struct {
	Strategy string
	Err      error
}

// Error reports that every decode strategy was exhausted.
type Error struct {
	Source   string
	Attempts []Attempt
}

func (e *Error) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("decoding %q: no strategy succeeded: %s", e.Source, strings.Join(reasons, "; "))
}

// Unwrap exposes the per-strategy errors to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
