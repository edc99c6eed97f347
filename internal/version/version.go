// Package version contains the build version of docuflow.
package version

// Version is the semantic version of this build. Release tooling
// overrides it with -ldflags at build time.
var Version = "0.1.0-dev"
