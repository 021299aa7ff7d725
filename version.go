package main

import "fmt"

// Build information, set via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// versionString returns a one-line description of the build.
func versionString() string {
	return fmt.Sprintf("voicenote %s (commit %s, built %s)", Version, Commit, BuildTime)
}
