package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbenyoussef/wird/internal/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Session.Tradition != string(session.Hafs) {
		t.Errorf("Tradition = %q, want hafs", cfg.Session.Tradition)
	}
	if cfg.Session.Speed != 1.0 {
		t.Errorf("Speed = %v, want 1.0", cfg.Session.Speed)
	}
	if cfg.Session.GapMillis != 500 {
		t.Errorf("GapMillis = %d, want 500", cfg.Session.GapMillis)
	}
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Session.VerseRepeat != 1 {
		t.Errorf("VerseRepeat = %d, want 1", cfg.Session.VerseRepeat)
	}
}

func TestLoadFile_Overrides(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
log_level = "debug"
cache_dir = "/tmp/wird-cache"

[session]
tradition = "warsh"
speed = 1.5
verse_repeat = 3
range_repeat = 0
gap_ms = 1200
connect_before = true
post_range = "verses"
post_range_count = 10
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Session.Tradition != "warsh" {
		t.Errorf("Tradition = %q", cfg.Session.Tradition)
	}

	snap := cfg.Snapshot()
	if snap.Speed != 1.5 {
		t.Errorf("Speed = %v", snap.Speed)
	}
	if snap.VerseRepeat != 3 {
		t.Errorf("VerseRepeat = %v", snap.VerseRepeat)
	}
	if !snap.RangeRepeat.IsInfinite() {
		t.Error("range_repeat = 0 should mean infinite")
	}
	if snap.Gap != 1200*time.Millisecond {
		t.Errorf("Gap = %v", snap.Gap)
	}
	if !snap.ConnectBefore || snap.ConnectAfter {
		t.Error("connection flags wrong")
	}
	if snap.PostRange.Kind != session.PostRangeContinueVerses || snap.PostRange.Count != 10 {
		t.Errorf("PostRange = %+v", snap.PostRange)
	}
}

func TestLoadFile_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", `log_level = "verbose"`},
		{"bad tradition", "[session]\ntradition = \"unknown\""},
		{"zero speed", "[session]\nspeed = 0.0"},
		{"bad post range", "[session]\npost_range = \"forever\""},
		{"continuation without count", "[session]\npost_range = \"pages\""},
		{"negative gap", "[session]\ngap_ms = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadFile should fail")
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	if got := expandPath("~/recordings"); got != filepath.Join(home, "recordings") {
		t.Errorf("expandPath(~/recordings) = %q", got)
	}
	if got := expandPath("/var/cache/wird"); got != "/var/cache/wird" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("empty path changed: %q", got)
	}
}
