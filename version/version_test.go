package version

import "testing"

func stamp(t *testing.T, v, commit, built string) {
	t.Helper()
	origV, origC, origB := Version, Commit, BuildTime
	Version, Commit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, Commit, BuildTime = origV, origC, origB })
}

func TestGet_UsesStampedValues(t *testing.T) {
	stamp(t, "1.2.0", "abcdef0123456", "2026-01-02T03:04:05Z")

	info := Get()
	if info.Version != "1.2.0" {
		t.Errorf("expected version 1.2.0, got %q", info.Version)
	}
	if info.Commit != "abcdef0" {
		t.Errorf("expected commit truncated to 7 chars, got %q", info.Commit)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected build time %q", info.BuildTime)
	}
}

func TestInfo_IsRelease(t *testing.T) {
	tests := []struct {
		info Info
		want bool
	}{
		{Info{Version: "dev"}, false},
		{Info{Version: "1.0.0"}, true},
		{Info{Version: "1.0.0", Dirty: true}, false},
		{Info{}, false},
	}
	for _, tt := range tests {
		if got := tt.info.IsRelease(); got != tt.want {
			t.Errorf("%+v: IsRelease() = %v, want %v", tt.info, got, tt.want)
		}
	}
}

func TestInfo_String(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.0.0", Commit: "abc1234"}, "1.0.0-abc1234"},
		{Info{Version: "1.0.0", Commit: "abc1234", Dirty: true, BuildTime: "2026-01-02T03:04:05Z"}, "1.0.0-abc1234-dirty (built 2026-01-02T03:04:05Z)"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
