package record

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var deriveNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestDeriveDisplayName(t *testing.T) {
	for _, tc := range []struct {
		name     string
		rec      Record
		expected any
	}{
		{
			name:     "all_parts",
			rec:      Record{FieldFirstName: "Jan", FieldInfix: "van der", FieldLastName: "Berg"},
			expected: "Jan van der Berg",
		},
		{
			name:     "no_infix",
			rec:      Record{FieldFirstName: "Anna", FieldLastName: "Visser"},
			expected: "Anna Visser",
		},
		{
			name:     "first_only",
			rec:      Record{FieldFirstName: "Anna"},
			expected: "Anna",
		},
		{
			name:     "empty_parts_skipped",
			rec:      Record{FieldFirstName: "", FieldInfix: "de", FieldLastName: "Wit"},
			expected: "de Wit",
		},
		{
			name:     "no_parts",
			rec:      Record{FieldID: "m-1"},
			expected: nil,
		},
		{
			name:     "non_string_part_ignored",
			rec:      Record{FieldFirstName: int64(9), FieldLastName: "Smit"},
			expected: "Smit",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			derived := DeriveOne(tc.rec, deriveNow)
			require.Equal(t, tc.expected, derived[FieldDisplayName])
		})
	}
}

func TestDeriveAge(t *testing.T) {
	for _, tc := range []struct {
		name     string
		birth    any
		expected any
	}{
		{name: "birthday_passed", birth: "1990-03-01", expected: int64(34)},
		{name: "birthday_today", birth: "1990-06-15", expected: int64(34)},
		{name: "birthday_upcoming", birth: "1990-09-01", expected: int64(33)},
		{name: "born_now", birth: "2024-06-15", expected: int64(0)},
		{name: "missing", birth: nil, expected: nil},
		{name: "unparseable", birth: "soon", expected: nil},
		{name: "future", birth: "2030-01-01", expected: nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := Record{FieldID: "m-1"}
			if tc.birth != nil {
				rec[FieldBirthDate] = tc.birth
			}
			derived := DeriveOne(rec, deriveNow)
			require.Equal(t, tc.expected, derived[FieldAge])
		})
	}
}

func TestDeriveMembership(t *testing.T) {
	rec := Record{FieldID: "m-1", FieldRegisteredAt: "2012-09-01T10:30:00Z"}
	derived := DeriveOne(rec, deriveNow)

	require.Equal(t, int64(11), derived[FieldMembershipYears])
	require.Equal(t, int64(2012), derived[FieldRegistrationYear])
}

func TestDeriveMembershipInvalid(t *testing.T) {
	derived := DeriveOne(Record{FieldID: "m-1", FieldRegisteredAt: "pending"}, deriveNow)

	require.Nil(t, derived[FieldMembershipYears])
	require.Nil(t, derived[FieldRegistrationYear])
}

func TestDeriveDoesNotMutateInput(t *testing.T) {
	rec := Record{FieldID: "m-1", FieldFirstName: "Jan", FieldBirthDate: "1990-03-01"}
	_ = DeriveOne(rec, deriveNow)

	require.NotContains(t, rec, FieldDisplayName)
	require.NotContains(t, rec, FieldAge)
}

// Deriving the raw portion of an already derived record must reproduce the
// derived record exactly.
func TestDeriveIsIdempotent(t *testing.T) {
	records := []Record{
		{
			FieldID:           "m-1",
			FieldFirstName:    "Jan",
			FieldInfix:        "van der",
			FieldLastName:     "Berg",
			FieldBirthDate:    "1990-03-01",
			FieldRegisteredAt: "2012-09-01T10:30:00Z",
			FieldRegion:       "North",
		},
		{
			FieldID:        "m-2",
			FieldFirstName: "Anna",
			FieldBirthDate: "not a date",
		},
		{
			FieldID: "m-3",
		},
	}

	once := Derive(records, deriveNow)

	raws := make([]Record, 0, len(once))
	for _, rec := range once {
		raws = append(raws, rec.RawPortion())
	}
	twice := Derive(raws, deriveNow)

	require.Empty(t, cmp.Diff(once, twice))
}

func TestDeriveOverwritesStaleDerivedFields(t *testing.T) {
	rec := Record{
		FieldID:          "m-1",
		FieldFirstName:   "Jan",
		FieldDisplayName: "Stale Name",
		FieldAge:         int64(99),
	}

	derived := DeriveOne(rec, deriveNow)
	require.Equal(t, "Jan", derived[FieldDisplayName])
	require.Nil(t, derived[FieldAge])
}
