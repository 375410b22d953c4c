package quran

import "fmt"

// VerseRange is an inclusive range of verses in reading order.
type VerseRange struct {
	Start VerseRef
	End   VerseRef
}

// NewRange builds a validated range.
func NewRange(start, end VerseRef) (VerseRange, error) {
	r := VerseRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return VerseRange{}, err
	}
	return r, nil
}

// Validate checks both endpoints and their ordering.
func (r VerseRange) Validate() error {
	if !r.Start.Valid() {
		return fmt.Errorf("invalid range start %s", r.Start)
	}
	if !r.End.Valid() {
		return fmt.Errorf("invalid range end %s", r.End)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("range start %s after end %s", r.Start, r.End)
	}
	return nil
}

// Contains reports whether v falls inside the range.
func (r VerseRange) Contains(v VerseRef) bool {
	return !v.Before(r.Start) && !v.After(r.End)
}

// Len returns the number of verses covered by the range.
func (r VerseRange) Len() int {
	return r.End.SequenceNumber() - r.Start.SequenceNumber() + 1
}

// Single returns a range covering exactly one verse.
func Single(v VerseRef) VerseRange {
	return VerseRange{Start: v, End: v}
}

// String returns the "start-end" form, or just the verse for a single.
func (r VerseRange) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}
