// Package config loads the application configuration from TOML files
// and applies defaults once, at this boundary; the engine only ever
// sees validated values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rbenyoussef/wird/internal/session"
)

type Config struct {
	LogLevel   string `koanf:"log_level"`   // "debug", "info", "warn", "error"
	CacheDir   string `koanf:"cache_dir"`   // empty means XDG cache dir
	LayoutPath string `koanf:"layout_path"` // page layout table (JSON)

	Session SessionConfig `koanf:"session"`
}

// SessionConfig holds the defaults a new practice session starts from.
type SessionConfig struct {
	Tradition     string  `koanf:"tradition"`
	Speed         float64 `koanf:"speed"`
	VerseRepeat   int     `koanf:"verse_repeat"` // 0 = infinite
	RangeRepeat   int     `koanf:"range_repeat"` // 0 = infinite
	GapMillis     int     `koanf:"gap_ms"`
	ConnectBefore bool    `koanf:"connect_before"`
	ConnectAfter  bool    `koanf:"connect_after"`

	// PostRange: "stop", "verses" or "pages"; Count applies to the
	// latter two.
	PostRange      string `koanf:"post_range"`
	PostRangeCount int    `koanf:"post_range_count"`
}

// Load reads config files in priority order (last wins) and fills in
// defaults.
func Load() (*Config, error) {
	return loadPaths(configPaths())
}

// LoadFile reads a single explicit config file.
func LoadFile(path string) (*Config, error) {
	return loadPaths([]string{path})
}

func loadPaths(paths []string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.CacheDir = expandPath(cfg.CacheDir)
	cfg.LayoutPath = expandPath(cfg.LayoutPath)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Session: SessionConfig{
			Tradition:   string(session.Hafs),
			Speed:       1.0,
			VerseRepeat: 1,
			RangeRepeat: 1,
			GapMillis:   500,
			PostRange:   "stop",
		},
	}
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if _, err := session.ParseTradition(c.Session.Tradition); err != nil {
		return err
	}
	if c.Session.Speed <= 0 {
		return fmt.Errorf("invalid session.speed %v", c.Session.Speed)
	}
	switch c.Session.PostRange {
	case "stop", "verses", "pages":
	default:
		return fmt.Errorf("invalid session.post_range %q", c.Session.PostRange)
	}
	if c.Session.PostRange != "stop" && c.Session.PostRangeCount <= 0 {
		return fmt.Errorf("session.post_range_count must be positive for %q", c.Session.PostRange)
	}
	if c.Session.GapMillis < 0 {
		return fmt.Errorf("invalid session.gap_ms %d", c.Session.GapMillis)
	}
	return nil
}

// Snapshot builds the session settings the config describes, leaving
// the range and priority list to the caller.
func (c *Config) Snapshot() session.Snapshot {
	s := c.Session
	snap := session.Snapshot{
		Tradition:     session.Tradition(s.Tradition),
		Speed:         s.Speed,
		VerseRepeat:   session.RepeatCount(s.VerseRepeat),
		RangeRepeat:   session.RepeatCount(s.RangeRepeat),
		Gap:           time.Duration(s.GapMillis) * time.Millisecond,
		ConnectBefore: s.ConnectBefore,
		ConnectAfter:  s.ConnectAfter,
	}
	switch s.PostRange {
	case "verses":
		snap.PostRange = session.PostRangeAction{Kind: session.PostRangeContinueVerses, Count: s.PostRangeCount}
	case "pages":
		snap.PostRange = session.PostRangeAction{Kind: session.PostRangeContinuePages, Count: s.PostRangeCount}
	default:
		snap.PostRange = session.PostRangeAction{Kind: session.PostRangeStop}
	}
	return snap
}

func configPaths() []string {
	paths := []string{}

	// 1. ~/.config/wird/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wird", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
