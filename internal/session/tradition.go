// Package session holds the immutable value types captured when playback
// starts: the settings snapshot, priority lists and range overrides.
package session

import "fmt"

// Tradition identifies a canonical transmission lineage (riwayah).
// Sources and personal recordings carry exactly one.
type Tradition string

const (
	Hafs   Tradition = "hafs"
	Warsh  Tradition = "warsh"
	Qalun  Tradition = "qalun"
	AlDuri Tradition = "alduri"
	Shuba  Tradition = "shuba"
)

// Traditions lists every supported tradition.
var Traditions = []Tradition{Hafs, Warsh, Qalun, AlDuri, Shuba}

// ParseTradition converts a string to a Tradition, rejecting unknown tags.
func ParseTradition(s string) (Tradition, error) {
	for _, t := range Traditions {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tradition %q", s)
}

// Valid reports whether t is one of the supported traditions.
func (t Tradition) Valid() bool {
	for _, known := range Traditions {
		if t == known {
			return true
		}
	}
	return false
}
