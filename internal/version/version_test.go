package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	vcs := func(kv ...string) []debug.BuildSetting {
		var out []debug.BuildSetting
		for i := 0; i+1 < len(kv); i += 2 {
			out = append(out, debug.BuildSetting{Key: kv[i], Value: kv[i+1]})
		}
		return out
	}

	tests := []struct {
		name        string
		version     string
		commit      string
		settings    []debug.BuildSetting
		wantVersion string
		wantCommit  string
	}{
		{
			name:    "ldflags win",
			version: "v0.3.0", commit: "4f2a9c1",
			settings:    vcs("vcs.revision", "ffffffffffff"),
			wantVersion: "v0.3.0", wantCommit: "4f2a9c1",
		},
		{
			name:        "clean checkout",
			settings:    vcs("vcs.revision", "0123456789abcdef", "vcs.time", "2026-02-01T10:00:00Z", "vcs.modified", "false"),
			wantVersion: "dev-20260201", wantCommit: "0123456",
		},
		{
			name:        "dirty tree",
			settings:    vcs("vcs.revision", "abc", "vcs.modified", "true"),
			wantVersion: "dev-20260314-092653", wantCommit: "abc-dirty",
		},
		{
			name:        "no vcs data",
			wantVersion: "dev-20260314-092653", wantCommit: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c := resolve(tt.version, tt.commit, tt.settings, now)
			if v != tt.wantVersion || c != tt.wantCommit {
				t.Errorf("resolve() = (%q, %q), want (%q, %q)", v, c, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}
