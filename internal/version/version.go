// Package version exposes the build version injected via ldflags.
package version

// version is overridden at build time:
//
//	go build -ldflags "-X github.com/getpanelist/panelist/internal/version.version=v1.2.3"
var version = "v0.0.0-dev"

// Value returns the build version string.
func Value() string {
	return version
}
