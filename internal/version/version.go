// Package version carries build metadata injected through ldflags.
package version

import "fmt"

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/sitebuilder/internal/version.Version=v1.0.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Generator names this program in generated documents such as feeds.
const Generator = "sitebuilder"

// String renders the line printed by --version.
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Generator, Version, GitCommit, BuildTime)
}
