// Package version holds build information set at link time.
package version

import "fmt"

var (
	// Version is the release version, overridden with -ldflags.
	Version = "0.1.0"

	// GitCommit is the commit the binary was built from.
	GitCommit = ""
)

// GetVersion returns the version with the commit appended when known.
func GetVersion() string {
	if GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
