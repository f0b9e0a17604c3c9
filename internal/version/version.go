// Package version holds build metadata stamped via -ldflags, e.g.
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0 \
//	  -X .../internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)
