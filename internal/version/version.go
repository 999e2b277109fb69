// Package version holds build metadata stamped in through ldflags.
package version

var (
	// Version is the release tag, "dev" for unstamped local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is when the binary was produced.
	BuildTime = "unknown"
)
