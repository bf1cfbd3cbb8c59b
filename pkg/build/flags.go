// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded into the binary at compile time
// via linker flags: application name, build timestamp, Git commit, and
// semantic version. Development builds without ldflags fall back to "dev"
// placeholders instead of failing startup.
package build

import "fmt"

// Info holds the resolved build metadata.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

// Get resolves the build metadata, substituting development placeholders for
// any flag the build did not set.
func Get() Info {
	info := Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	if info.Name == "" {
		info.Name = "ici"
	}
	if info.Time == "" {
		info.Time = "unknown"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

// Summary returns a one-line human-readable description of the build.
func (i Info) Summary() string {
	return fmt.Sprintf("%s %s (%s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
