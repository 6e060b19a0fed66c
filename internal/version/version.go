// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build metadata for `cardwatcher version`.
func String() string {
	return fmt.Sprintf("cardwatcher %s (commit %s, built %s)", Version, Commit, BuildDate)
}
