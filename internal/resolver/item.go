// Package resolver picks the audio for one verse from the ranked candidate
// sources of the active priority list, enforcing the snapshot's tradition.
package resolver

import (
	"time"

	"github.com/rbenyoussef/wird/internal/quran"
)

// Kind distinguishes personal recordings from remote/cached sources.
type Kind int

const (
	KindPersonal Kind = iota
	KindRemote
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPersonal:
		return "personal"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// PlayableItem is the resolver's output for one queue step: where the
// audio lives, the window to play, and what it satisfies. Constructed
// fresh per resolution, immutable, discarded once consumed.
type PlayableItem struct {
	Locator string
	// Start and End bound the playback window inside the audio file.
	// A zero End means "play to the end of the file".
	Start time.Duration
	End   time.Duration
	// Covers is the verse (or verse range, for items that subsume
	// following queue entries) the item satisfies.
	Covers      quran.VerseRange
	Kind        Kind
	DisplayName string
	ReciterName string
}
