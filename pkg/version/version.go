// Package version derives the reported application version from build
// metadata stamped by the Go toolchain.
package version

import "runtime/debug"

// GitCommit is the short VCS revision the binary was built from, or "dev"
// when no revision is available (go test, builds outside a git checkout).
var GitCommit = shortRevision()

func shortRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 8 {
			return s.Value[:8]
		}
	}
	return "dev"
}

// Full is the version string used in startup logs and the health endpoint.
func Full() string {
	return "opsrelay/" + GitCommit
}
