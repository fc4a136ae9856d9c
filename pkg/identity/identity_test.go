package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNormalizesTokens(t *testing.T) {
	id := New(" members_read ", "", "region_North", "region_North", "  ")
	require.Equal(t, []string{"members_read", "region_North"}, id.Tokens())
}

func TestCanReadRecords(t *testing.T) {
	for _, tc := range []struct {
		name     string
		tokens   []string
		expected bool
	}{
		{name: "read", tokens: []string{PermissionRead}, expected: true},
		{name: "read_all", tokens: []string{PermissionReadAll}, expected: true},
		{name: "write", tokens: []string{PermissionWrite}, expected: true},
		{name: "export", tokens: []string{PermissionExport}, expected: true},
		{name: "admin", tokens: []string{PermissionAdmin}, expected: true},
		{name: "region_only", tokens: []string{"region_North"}, expected: false},
		{name: "unrelated", tokens: []string{"events_read"}, expected: false},
		{name: "empty", tokens: nil, expected: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, New(tc.tokens...).CanReadRecords())
		})
	}
}

func TestHasGlobalAccess(t *testing.T) {
	require.True(t, New(AllRegionsToken).HasGlobalAccess())
	require.True(t, New(PermissionAdmin).HasGlobalAccess())
	require.False(t, New(PermissionRead, "region_North").HasGlobalAccess())
	require.False(t, Identity{}.HasGlobalAccess())
}

func TestRegions(t *testing.T) {
	id := New("region_South", "region_North", AllRegionsToken, PermissionRead, "region_")
	require.Equal(t, []string{"North", "South"}, id.Regions())

	require.Empty(t, New(PermissionRead).Regions())
}

func TestFingerprintStableAcrossOrder(t *testing.T) {
	a := New(PermissionRead, "region_North", "region_South")
	b := New("region_South", PermissionRead, "region_North")
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintDiffersAcrossIdentities(t *testing.T) {
	a := New(PermissionRead, "region_North")
	b := New(PermissionRead, "region_South")
	c := New(PermissionRead)
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestFingerprintSeparatorsPreventGluing(t *testing.T) {
	a := New("ab", "c")
	b := New("a", "bc")
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestZeroIdentity(t *testing.T) {
	var id Identity
	require.False(t, id.Has(PermissionRead))
	require.Empty(t, id.Tokens())
	require.Empty(t, id.Regions())
}
