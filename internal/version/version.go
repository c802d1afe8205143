// Package version holds the jog version string.
package version

// Version is the current release, overridable at build time via
// -ldflags "-X jog/internal/version.Version=...".
var Version = "0.4.0"
