package record

import (
	"strings"
	"time"
)

// Derive computes the derived attributes for every record in recs relative
// to now and returns a new sequence; the input records are not mutated.
//
// The derivations are a pure function of the raw attributes and now:
//   - displayName from the name-part fields (first name, infix, last name)
//   - age in whole years from the birth date
//   - membershipYears in whole years from the registration timestamp
//   - registrationYear, the calendar year of that timestamp
//
// Invalid or missing inputs derive to nil, never to an error, so a single
// malformed row cannot poison a load.
func Derive(recs []Record, now time.Time) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = DeriveOne(r, now)
	}
	return out
}

// DeriveOne computes the derived attributes for a single record. The result
// is a copy; r is left untouched.
func DeriveOne(r Record, now time.Time) Record {
	out := r.Clone()

	out[FieldDisplayName] = displayName(out)

	out[FieldAge] = nil
	if birth, ok := AsTime(out[FieldBirthDate]); ok {
		if years := wholeYearsBetween(birth, now); years >= 0 {
			out[FieldAge] = int64(years)
		}
	}

	out[FieldMembershipYears] = nil
	out[FieldRegistrationYear] = nil
	if registered, ok := AsTime(out[FieldRegisteredAt]); ok {
		if years := wholeYearsBetween(registered, now); years >= 0 {
			out[FieldMembershipYears] = int64(years)
		}
		out[FieldRegistrationYear] = int64(registered.Year())
	}

	return out
}

// displayName joins the non-empty name parts in natural order. Records with
// no name parts at all derive a nil display name.
func displayName(r Record) any {
	parts := make([]string, 0, 3)
	for _, field := range []string{FieldFirstName, FieldInfix, FieldLastName} {
		if s, ok := AsString(r[field]); ok {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, " ")
}

// wholeYearsBetween counts completed calendar years from 'from' to 'to':
// the count increments only once the anniversary date has passed.
func wholeYearsBetween(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	years := to.Year() - from.Year()
	anniversary := from.AddDate(years, 0, 0)
	if anniversary.After(to) {
		years--
	}
	return years
}
