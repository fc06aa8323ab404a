// Package version carries build metadata stamped in with -ldflags -X.
package version

var (
	// Version is the release tag, or "dev" for local builds
	Version = "dev"
	// Commit is the git commit hash
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Info is the body of every /v1/version endpoint
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// Get returns the build metadata for the named binary
func Get(service string) Info {
	return Info{Service: service, Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// IsRelease reports whether the binary was built from a tagged release
func IsRelease() bool {
	return Version != "" && Version != "dev"
}
