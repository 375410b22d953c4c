package playback

import (
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/session"
)

// StateChange is emitted on every engine state transition.
type StateChange struct {
	Previous State
	Current  State
}

// VerseChange is emitted when audio for a verse is scheduled.
//
// Emitted once per scheduling, which means a repeated verse emits one
// VerseChange per repetition. Observers that only care about position
// can compare the Verse field against the previous event.
type VerseChange struct {
	Verse       quran.VerseRef
	Index       int
	QueueLen    int
	DisplayName string
	ReciterName string
	Rate        float64
}

// Unavailable is emitted exactly once for a verse that exhausted every
// candidate source. Playback continues past it automatically.
type Unavailable struct {
	Verse quran.VerseRef
}

// RepeatProgress is emitted on each completion of a verse's audio.
type RepeatProgress struct {
	Verse quran.VerseRef
	// Completed counts finished plays of this verse in the current
	// pass, starting at 1.
	Completed int
	Target    session.RepeatCount
	// Pass is the 1-based range pass number.
	Pass       int
	PassTarget session.RepeatCount
}

// ErrorEvent is emitted when an operation fails.
type ErrorEvent struct {
	Operation string
	Err       error
}
