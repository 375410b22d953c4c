package playback

import (
	"time"

	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/session"
)

// Current is a snapshot of the verse the engine is working on.
type Current struct {
	Verse       quran.VerseRef
	Index       int
	QueueLen    int
	DisplayName string
	ReciterName string
	// Completions counts finished plays of this verse in the current
	// pass.
	Completions int
	// Pass is the 1-based range pass number.
	Pass int
}

// Service defines the playback engine contract.
type Service interface {
	// Session control
	Play(rng quran.VerseRange, snap session.Snapshot) error
	Pause() error
	Resume() error
	Toggle() error
	Stop() error

	// Verse-granular navigation
	Next() error
	Previous() error
	Seek(v quran.VerseRef) error

	// State queries (snapshot reads)
	State() State
	Current() *Current
	Snapshot() session.Snapshot
	Position() time.Duration
	Duration() time.Duration

	// Event subscription
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}
