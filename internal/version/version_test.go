package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfoKeepsLdflags(t *testing.T) {
	info := Info{Version: "v1.2.0", Commit: "abc"}
	fromBuildInfo(&info, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.0.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	if info.Version != "v1.2.0" || info.Commit != "abc" {
		t.Fatalf("ldflags values overwritten: %+v", info)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" || !info.Dirty {
		t.Fatalf("vcs stamps not applied: %+v", info)
	}
}

func TestFromBuildInfoDevelModule(t *testing.T) {
	var info Info
	fromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if info.Version != "" {
		t.Fatalf("(devel) must not become a version: %q", info.Version)
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	info := Resolve()
	if info.Version == "" {
		t.Fatal("Resolve returned empty version")
	}
	if !strings.Contains(info.GoVersion, "go") {
		t.Fatalf("unexpected go version %q", info.GoVersion)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("shortCommit = %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("shortCommit = %q", got)
	}
}
