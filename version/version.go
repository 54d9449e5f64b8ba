// Package version embeds build information.
//
// Version and GitCommit are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/skillsenselab/memovox/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
)

// String returns a human-readable version line, falling back to VCS
// metadata from the build info when no ldflags were supplied.
func String() string {
	commit := GitCommit
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
					break
				}
			}
		}
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, commit)
}
