// Package version carries the build version, set with
// -ldflags "-X github.com/alvmarrod/label-weaver/internal/version.Version=...".
package version

// Version of the labelweaver binary.
var Version = "0.1.0-dev"
