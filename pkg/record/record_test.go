package record

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	original := Record{
		FieldID:        "m-1",
		FieldFirstName: "Anna",
		"tags":         []any{"volunteer", "coach"},
		"extra":        map[string]any{"note": "call back"},
	}

	clone := original.Clone()
	require.Empty(t, cmp.Diff(original, clone))

	clone[FieldFirstName] = "Bea"
	clone["tags"].([]any)[0] = "changed"
	clone["extra"].(map[string]any)["note"] = "changed"

	require.Equal(t, "Anna", original[FieldFirstName])
	require.Equal(t, "volunteer", original["tags"].([]any)[0])
	require.Equal(t, "call back", original["extra"].(map[string]any)["note"])
}

func TestCloneAllNilAndEmpty(t *testing.T) {
	require.Nil(t, CloneAll(nil))
	require.Empty(t, CloneAll([]Record{}))
}

func TestRawPortionStripsDerivedFields(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	rec := Record{
		FieldID:        "m-2",
		FieldFirstName: "Jan",
		FieldLastName:  "Visser",
		FieldBirthDate: "1990-03-01",
	}

	derived := DeriveOne(rec, now)
	require.Contains(t, derived, FieldAge)
	require.Contains(t, derived, FieldDisplayName)

	raw := derived.RawPortion()
	for _, field := range []string{FieldDisplayName, FieldAge, FieldMembershipYears, FieldRegistrationYear} {
		require.NotContains(t, raw, field)
	}
	require.Equal(t, "Jan", raw[FieldFirstName])
}

func TestRecordID(t *testing.T) {
	for _, tc := range []struct {
		name     string
		value    any
		expected string
	}{
		{name: "string_id", value: "abc-123", expected: "abc-123"},
		{name: "int64_id", value: int64(42), expected: "42"},
		{name: "float_id", value: float64(42), expected: "42"},
		{name: "fractional_float_id", value: 42.5, expected: "42.5"},
		{name: "missing_id", value: nil, expected: ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := Record{}
			if tc.value != nil {
				rec[FieldID] = tc.value
			}
			require.Equal(t, tc.expected, rec.ID())
		})
	}
}

func TestRegion(t *testing.T) {
	region, ok := Record{FieldRegion: " North "}.Region()
	require.True(t, ok)
	require.Equal(t, "North", region)

	_, ok = Record{FieldRegion: "  "}.Region()
	require.False(t, ok)

	_, ok = Record{}.Region()
	require.False(t, ok)

	_, ok = Record{FieldRegion: int64(7)}.Region()
	require.False(t, ok)
}

func TestAsTime(t *testing.T) {
	for _, tc := range []struct {
		name     string
		value    any
		expected time.Time
		ok       bool
	}{
		{
			name:     "rfc3339",
			value:    "2012-09-01T10:30:00Z",
			expected: time.Date(2012, 9, 1, 10, 30, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "date_only",
			value:    "1990-03-01",
			expected: time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "dutch_day_first",
			value:    "01-03-1990",
			expected: time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "epoch_seconds",
			value:    int64(1346495400),
			expected: time.Date(2012, 9, 1, 10, 30, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "epoch_millis",
			value:    float64(1346495400000),
			expected: time.Date(2012, 9, 1, 10, 30, 0, 0, time.UTC),
			ok:       true,
		},
		{name: "garbage", value: "not a date", ok: false},
		{name: "nil", value: nil, ok: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AsTime(tc.value)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.True(t, got.Equal(tc.expected), "got %v, expected %v", got, tc.expected)
			}
		})
	}
}
