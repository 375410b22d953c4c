package session

import (
	"fmt"
	"time"

	"github.com/rbenyoussef/wird/internal/quran"
)

// Infinite is the RepeatCount value meaning "repeat forever".
const Infinite RepeatCount = 0

// RepeatCount is a repeat target: a positive count, or Infinite.
type RepeatCount int

// IsInfinite reports whether the count never exhausts.
func (c RepeatCount) IsInfinite() bool { return c <= 0 }

// Reached reports whether played completions satisfy the target.
func (c RepeatCount) Reached(played int) bool {
	if c.IsInfinite() {
		return false
	}
	return played >= int(c)
}

// PostRangeKind selects what happens after the last range repeat.
type PostRangeKind int

const (
	PostRangeStop PostRangeKind = iota
	PostRangeContinueVerses
	PostRangeContinuePages
)

// PostRangeAction describes the post-range-repeat continuation policy.
type PostRangeAction struct {
	Kind  PostRangeKind
	Count int // verses or pages, depending on Kind
}

// PriorityEntry is one reciter in a priority list.
type PriorityEntry struct {
	ReciterID string
	Enabled   bool
}

// PriorityList is an ordered list of reciter identities consulted in order.
type PriorityList []PriorityEntry

// EnabledIDs returns the reciter ids of enabled entries, in list order.
func (l PriorityList) EnabledIDs() []string {
	ids := make([]string, 0, len(l))
	for _, e := range l {
		if e.Enabled {
			ids = append(ids, e.ReciterID)
		}
	}
	return ids
}

// RangeOverride scopes a priority list to a verse subrange. Within the
// subrange it takes precedence over the snapshot's global list.
type RangeOverride struct {
	Covers   quran.VerseRange
	Priority PriorityList
}

// Validate rejects overrides with invalid ranges or empty lists, so a bad
// override is never partially applied.
func (o RangeOverride) Validate() error {
	if err := o.Covers.Validate(); err != nil {
		return fmt.Errorf("range override: %w", err)
	}
	if len(o.Priority) == 0 {
		return fmt.Errorf("range override %s: empty priority list", o.Covers)
	}
	return nil
}

// Snapshot is the immutable settings value captured once when playback
// starts. The engine never reads live settings mid-session.
type Snapshot struct {
	Range         quran.VerseRange
	Tradition     Tradition
	Speed         float64
	VerseRepeat   RepeatCount
	RangeRepeat   RepeatCount
	PostRange     PostRangeAction
	Gap           time.Duration
	ConnectBefore bool
	ConnectAfter  bool
	Priority      PriorityList
	Overrides     []RangeOverride
}

// Validate checks the snapshot before a session is built from it.
func (s Snapshot) Validate() error {
	if err := s.Range.Validate(); err != nil {
		return err
	}
	if !s.Tradition.Valid() {
		return fmt.Errorf("invalid tradition %q", s.Tradition)
	}
	if s.Speed <= 0 {
		return fmt.Errorf("invalid speed %v", s.Speed)
	}
	if len(s.Priority) == 0 {
		return fmt.Errorf("empty priority list")
	}
	for _, o := range s.Overrides {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ActivePriority returns the priority list in effect for a verse: the first
// covering override wins, otherwise the global list.
func (s Snapshot) ActivePriority(v quran.VerseRef) PriorityList {
	for _, o := range s.Overrides {
		if o.Covers.Contains(v) {
			return o.Priority
		}
	}
	return s.Priority
}
