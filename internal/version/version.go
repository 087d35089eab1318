// Package version holds build-time version information for Driftwatch.
// The variables are overridden at build time via -ldflags:
//
//	go build -ldflags "-X github.com/HerbHall/driftwatch/internal/version.Version=1.2.3"
package version

import "fmt"

var (
	// Version is the semantic version of the binary ("dev" for local builds).
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp in RFC 3339 format.
	Date = "unknown"
)

// Short returns just the version string.
func Short() string {
	return Version
}

// Info returns a human-readable one-line version description.
func Info() string {
	return fmt.Sprintf("driftwatch %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns version details as a map for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
