// Package version reports the build's version and commit.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version and Commit are normally stamped by the release build:
//
//	go build -ldflags="-X github.com/muurk/vesclink/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/vesclink/internal/version.Commit=4f2a9c1"
//
// Local builds fill them from the VCS data the toolchain embeds.
var (
	Version = ""
	Commit  = ""
)

const shortHashLen = 7

func init() {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	Version, Commit = resolve(Version, Commit, settings, time.Now())
}

// resolve fills whichever of version and commit is empty. Commits come from
// vcs.revision, marked -dirty for modified trees. Versions fall back to
// dev-<date> using the commit time, or now when there is none.
func resolve(version, commit string, settings []debug.BuildSetting, now time.Time) (string, string) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if commit == "" {
		commit = "unknown"
		if rev := vcs["vcs.revision"]; rev != "" {
			if len(rev) > shortHashLen {
				rev = rev[:shortHashLen]
			}
			commit = rev
			if vcs["vcs.modified"] == "true" {
				commit += "-dirty"
			}
		}
	}

	if version == "" {
		stamp := now.Format("20060102-150405")
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			stamp = t.Format("20060102")
		}
		version = "dev-" + stamp
	}
	return version, commit
}

// Full returns the version with its commit, as printed by 'vesclink version'.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
