// Package identity models a caller identity as a flat set of string
// tokens: permission tokens that authorize record-level operations and
// region tokens that scope which records are visible. Identities are
// supplied per call by the host application; this package never fetches
// or stores them.
package identity

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Permission tokens recognized on an identity.
const (
	PermissionRead    = "members_read"
	PermissionReadAll = "members_read_all"
	PermissionWrite   = "members_write"
	PermissionExport  = "members_export"
	PermissionAdmin   = "members_admin"
)

// Region tokens take the form "region_<Name>". AllRegionsToken grants
// visibility into every region, including records without one.
const (
	RegionTokenPrefix = "region_"
	AllRegionsToken   = "region_all"
)

// readPermissions lists every permission that authorizes loading the
// membership dataset.
var readPermissions = []string{
	PermissionRead,
	PermissionReadAll,
	PermissionWrite,
	PermissionExport,
	PermissionAdmin,
}

// Identity is an immutable set of role and region tokens describing one
// caller. The zero value holds no tokens and therefore no access.
type Identity struct {
	tokens map[string]struct{}
}

// New builds an Identity from raw tokens. Tokens are trimmed of
// surrounding whitespace; empty and duplicate tokens are dropped.
func New(tokens ...string) Identity {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		set[token] = struct{}{}
	}
	return Identity{tokens: set}
}

// Has reports whether the identity holds the exact token.
func (i Identity) Has(token string) bool {
	_, ok := i.tokens[token]
	return ok
}

// HasAny reports whether the identity holds at least one of the tokens.
func (i Identity) HasAny(tokens ...string) bool {
	for _, token := range tokens {
		if i.Has(token) {
			return true
		}
	}
	return false
}

// Tokens returns a sorted copy of the token set.
func (i Identity) Tokens() []string {
	out := make([]string, 0, len(i.tokens))
	for token := range i.tokens {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// CanReadRecords reports whether the identity holds at least one
// permission that authorizes loading the membership dataset.
func (i Identity) CanReadRecords() bool {
	return i.HasAny(readPermissions...)
}

// HasGlobalAccess reports whether regional filtering is moot for this
// caller. Admins and holders of the all-regions token see every record.
func (i Identity) HasGlobalAccess() bool {
	return i.Has(AllRegionsToken) || i.Has(PermissionAdmin)
}

// HasReadAll reports whether the identity holds the explicit read-all
// permission, which keeps every record visible even without region
// grants.
func (i Identity) HasReadAll() bool {
	return i.Has(PermissionReadAll)
}

// Regions returns the specific regions granted to the identity, sorted.
// The all-regions token is not a specific grant and is not listed.
func (i Identity) Regions() []string {
	var out []string
	for token := range i.tokens {
		if token == AllRegionsToken || !strings.HasPrefix(token, RegionTokenPrefix) {
			continue
		}
		region := token[len(RegionTokenPrefix):]
		if region == "" {
			continue
		}
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}

// Fingerprint returns a stable hash of the token set. Two identities
// holding the same tokens produce the same fingerprint regardless of the
// order they were constructed with.
func (i Identity) Fingerprint() uint64 {
	digest := xxhash.New()
	_, _ = digest.WriteString("/")
	for _, token := range i.Tokens() {
		_, _ = digest.WriteString(token)
		_, _ = digest.WriteString(",")
	}
	return digest.Sum64()
}
