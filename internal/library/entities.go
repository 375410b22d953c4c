// Package library stores the recitation entities the resolver consults:
// reciter identities, user recordings, annotated segments and registered
// remote sources. Relationships are id references resolved through
// explicit queries, never object back-references.
package library

import (
	"time"

	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/session"
)

// Reciter is a shared identity owning recordings and remote sources.
type Reciter struct {
	ID        string
	Name      string
	Tradition session.Tradition
}

// Recording is one user-owned audio file. It belongs to exactly one
// reciter identity.
type Recording struct {
	ID        string
	ReciterID string
	Path      string
	CreatedAt time.Time
}

// Segment is a user-annotated sub-range of a recording mapped to one or
// more verses. A segment carries its own tradition tag, which takes
// precedence over its reciter's, so one reciter identity can hold
// mixed-tradition recordings.
type Segment struct {
	ID          string
	RecordingID string
	Start       time.Duration
	End         time.Duration
	// Join is the recorded boundary offset inside a two-verse split
	// segment: the opening verse plays [Start, Join], the closing verse
	// [Join, End]. Zero when no join was recorded; a join-less
	// multi-verse segment plays whole.
	Join       time.Duration
	Covers     quran.VerseRange
	Tradition  session.Tradition
	Manual     bool
	Confidence float64
	Rank       *int // user-assigned order; nil ranks last
}

// CrossBoundary reports whether the segment spans more than one verse.
func (s Segment) CrossBoundary() bool {
	return s.Covers.Start != s.Covers.End
}

// JoinSplit reports whether the segment carries a recorded join offset
// splitting it between its opening and closing verse.
func (s Segment) JoinSplit() bool {
	return s.CrossBoundary() && s.Join > 0
}

// RemoteSource is a cache-backed reciter entry fetched by naming
// convention. It belongs to exactly one reciter identity.
type RemoteSource struct {
	ID        string
	ReciterID string
	Tradition session.Tradition
	BaseURL   string
	Format    string
	Naming    string // cache naming scheme name
	Rank      int
}
