package build

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Semantic version components of the current release.
const (
	appMajor uint = 0
	appMinor uint = 2
	appPatch uint = 0

	// appPreRelease is appended to the version string for non-final
	// builds. It must contain only alphanumerics and hyphens.
	appPreRelease = "beta"
)

// Commit is the full git commit hash the binary was built from. It is set
// through -ldflags at build time and empty for go-install builds.
var Commit string

// GoVersion is the Go toolchain version reported by the build info.
var GoVersion string

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	GoVersion = info.GoVersion

	if Commit == "" {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				Commit = setting.Value
			}
		}
	}
}

// Version returns the application version as a properly formed string.
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)

	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}

	return version
}

// UserAgent returns a string suitable for identifying the binary to the
// MCP client, e.g. "olbridge/0.2.0-beta".
func UserAgent(name string) string {
	return fmt.Sprintf("%s/%s", strings.ToLower(name), Version())
}
