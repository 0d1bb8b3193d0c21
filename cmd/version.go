// Package cmd contains build-time variables injected via ldflags.
package cmd

// Build-time variables set via ldflags, for example
//
//	-X github.com/thoreinstein/strata/cmd.Version=v0.3.0
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
