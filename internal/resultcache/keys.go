package resultcache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key identifies one cached result set: the dataset source plus
// fingerprints of the processing options and of the caller identity.
// The identity fingerprint is zero when regional filtering is off, so
// unfiltered results are shared across callers while filtered results
// never are. A structured composite beats a flat hash here: distinct
// (source, options, identity) triples cannot collide, and the parts
// stay readable while debugging.
type Key struct {
	Source   string
	Options  uint64
	Identity uint64
}

// String renders the key for use as a single-flight group key and in
// logs. The numeric fields come first so an arbitrary source name can
// never forge another key's rendering.
func (k Key) String() string {
	return strconv.FormatUint(k.Options, 10) + "/" + strconv.FormatUint(k.Identity, 10) + "/" + k.Source
}

// Fingerprint hashes an ordered list of option parts into a stable
// token. Parts are written with separators so adjacent values cannot
// glue together.
func Fingerprint(parts ...string) uint64 {
	digest := xxhash.New()
	_, _ = digest.WriteString("/")
	for _, part := range parts {
		_, _ = digest.WriteString(part)
		_, _ = digest.WriteString(",")
	}
	return digest.Sum64()
}
