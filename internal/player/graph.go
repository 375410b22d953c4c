// Package player drives the audio output graph. It loads a resolved
// item's playback window, applies rate, normalization and clarity
// processing, and reports completion to the scheduling engine.
package player

import (
	"time"

	"github.com/google/uuid"

	"github.com/rbenyoussef/wird/internal/resolver"
)

// Options configure one scheduled segment.
type Options struct {
	// Rate is the playback speed multiplier. Zero or 1.0 plays at
	// natural speed.
	Rate float64
	// Normalize applies a loudness gain derived from the segment's
	// measured RMS level.
	Normalize bool
	// Clarity enables the high-pass cleanup filter, meant for personal
	// recordings captured on phone microphones.
	Clarity bool
}

// DoneFunc receives the token the segment was scheduled under. It fires
// exactly once per scheduled segment, and never after Stop cleared it.
type DoneFunc func(token uuid.UUID)

// Graph is the audio output contract the engine drives.
type Graph interface {
	Schedule(item *resolver.PlayableItem, opts Options, token uuid.UUID, onDone DoneFunc) error
	ScheduleSilence(d time.Duration, token uuid.UUID, onDone DoneFunc)
	Stop()
	Pause()
	Resume()
	Position() time.Duration
	Duration() time.Duration
	Rebuild() error
	Close()
}

// Verify implementations at compile time.
var (
	_ Graph = (*Player)(nil)
	_ Graph = (*Mock)(nil)
)
