// Package build holds build information, set at link time with -ldflags "-X ...".
package build

var (
	ReleaseVersion = "dev"
	GitCommit      = "unknown"
	GoVersion      = "unknown"
	BuildTime      = "unknown"
)
