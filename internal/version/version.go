// Package version provides build and version information for the engine.
package version

// Version is the current release version of the engine.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/taleweave/engine/internal/version.Version=x.y.z"
var Version = "0.1.0"
