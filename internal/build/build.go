// Package build provides build-time metadata about the rosterkit binary.
package build

const ProjectName = "rosterkit"

// These values are overridden at release time with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
