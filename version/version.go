// Package version provides build and dependency information for the
// docwallet binary.
package version

import (
	"runtime/debug"
	"sort"
)

// Version is the release version, overridable at build time with
// -ldflags "-X .../version.Version=v1.2.3".
var Version = "dev"

// DependencyInfo represents a module dependency and its version.
type DependencyInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// BuildInfo contains build-time information extracted from the binary.
type BuildInfo struct {
	Version      string           `json:"version"`
	GoVersion    string           `json:"goVersion"`
	MainModule   string           `json:"mainModule"`
	Dependencies []DependencyInfo `json:"dependencies"`
}

// GetBuildInfo extracts build information embedded by the toolchain.
func GetBuildInfo() *BuildInfo {
	out := &BuildInfo{
		Version:      Version,
		GoVersion:    "unknown",
		MainModule:   "unknown",
		Dependencies: []DependencyInfo{},
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.GoVersion = info.GoVersion
	out.MainModule = info.Path
	for _, dep := range info.Deps {
		out.Dependencies = append(out.Dependencies, DependencyInfo{
			Path:    dep.Path,
			Version: dep.Version,
		})
	}
	sort.Slice(out.Dependencies, func(i, j int) bool {
		return out.Dependencies[i].Path < out.Dependencies[j].Path
	})
	return out
}
