// Package quran provides verse identity and canonical ordering over the
// 114-chapter text, plus the exact page layout lookup used for page-based
// continuation.
package quran

import "fmt"

// verseCounts holds the number of verses in each chapter (Kufan counting,
// 6236 verses total). Index 0 is chapter 1.
var verseCounts = [114]int{
	7, 286, 200, 176, 120, 165, 206, 75, 129, 109,
	123, 111, 43, 52, 99, 128, 111, 110, 98, 135,
	112, 78, 118, 64, 77, 227, 93, 88, 69, 60,
	34, 30, 73, 54, 45, 83, 182, 88, 75, 85,
	54, 53, 89, 59, 37, 35, 38, 29, 18, 45,
	60, 49, 62, 55, 78, 96, 29, 22, 24, 13,
	14, 11, 11, 18, 12, 12, 30, 52, 52, 44,
	28, 28, 20, 56, 40, 31, 50, 40, 46, 42,
	29, 19, 36, 25, 22, 17, 19, 26, 30, 20,
	15, 21, 11, 8, 8, 19, 5, 8, 8, 11,
	11, 8, 3, 9, 5, 4, 7, 3, 6, 3,
	5, 4, 5, 6,
}

// ChapterCount is the number of chapters in the text.
const ChapterCount = 114

// TotalVerses is the total number of verses across all chapters.
const TotalVerses = 6236

// VerseCount returns the number of verses in the given chapter,
// or 0 if the chapter is out of range.
func VerseCount(chapter int) int {
	if chapter < 1 || chapter > ChapterCount {
		return 0
	}
	return verseCounts[chapter-1]
}

// VerseRef identifies a single verse by chapter and verse number.
// It is an immutable value, comparable under reading order.
type VerseRef struct {
	Chapter int
	Verse   int
}

// First is the first verse of the text.
var First = VerseRef{Chapter: 1, Verse: 1}

// Last is the final verse of the text.
var Last = VerseRef{Chapter: ChapterCount, Verse: verseCounts[ChapterCount-1]}

// Valid reports whether the reference addresses an existing verse.
func (v VerseRef) Valid() bool {
	return v.Chapter >= 1 && v.Chapter <= ChapterCount &&
		v.Verse >= 1 && v.Verse <= verseCounts[v.Chapter-1]
}

// Compare returns -1, 0 or 1 ordering v against o in reading order.
func (v VerseRef) Compare(o VerseRef) int {
	switch {
	case v.Chapter < o.Chapter:
		return -1
	case v.Chapter > o.Chapter:
		return 1
	case v.Verse < o.Verse:
		return -1
	case v.Verse > o.Verse:
		return 1
	default:
		return 0
	}
}

// Before reports whether v comes strictly before o.
func (v VerseRef) Before(o VerseRef) bool { return v.Compare(o) < 0 }

// Equal reports whether v and o name the same verse.
func (v VerseRef) Equal(o VerseRef) bool { return v == o }

// After reports whether v comes strictly after o.
func (v VerseRef) After(o VerseRef) bool { return v.Compare(o) > 0 }

// Successor returns the verse following v, walking into the next chapter
// when needed. ok is false past the final verse of chapter 114.
func (v VerseRef) Successor() (next VerseRef, ok bool) {
	if !v.Valid() {
		return VerseRef{}, false
	}
	if v.Verse < verseCounts[v.Chapter-1] {
		return VerseRef{Chapter: v.Chapter, Verse: v.Verse + 1}, true
	}
	if v.Chapter < ChapterCount {
		return VerseRef{Chapter: v.Chapter + 1, Verse: 1}, true
	}
	return VerseRef{}, false
}

// Predecessor returns the verse preceding v. ok is false before 1:1.
func (v VerseRef) Predecessor() (prev VerseRef, ok bool) {
	if !v.Valid() {
		return VerseRef{}, false
	}
	if v.Verse > 1 {
		return VerseRef{Chapter: v.Chapter, Verse: v.Verse - 1}, true
	}
	if v.Chapter > 1 {
		return VerseRef{Chapter: v.Chapter - 1, Verse: verseCounts[v.Chapter-2]}, true
	}
	return VerseRef{}, false
}

// SequenceNumber returns the flat 1..6236 position of the verse,
// or 0 for an invalid reference.
func (v VerseRef) SequenceNumber() int {
	if !v.Valid() {
		return 0
	}
	n := 0
	for c := 1; c < v.Chapter; c++ {
		n += verseCounts[c-1]
	}
	return n + v.Verse
}

// FromSequenceNumber converts a flat 1..6236 index back to a VerseRef.
func FromSequenceNumber(n int) (VerseRef, bool) {
	if n < 1 || n > TotalVerses {
		return VerseRef{}, false
	}
	for c := 1; c <= ChapterCount; c++ {
		count := verseCounts[c-1]
		if n <= count {
			return VerseRef{Chapter: c, Verse: n}, true
		}
		n -= count
	}
	return VerseRef{}, false
}

// String returns the "chapter:verse" form.
func (v VerseRef) String() string {
	return fmt.Sprintf("%d:%d", v.Chapter, v.Verse)
}

// ParseRef parses a "chapter:verse" string into a VerseRef.
func ParseRef(s string) (VerseRef, error) {
	var v VerseRef
	if _, err := fmt.Sscanf(s, "%d:%d", &v.Chapter, &v.Verse); err != nil {
		return VerseRef{}, fmt.Errorf("parse verse ref %q: %w", s, err)
	}
	if !v.Valid() {
		return VerseRef{}, fmt.Errorf("verse ref %q out of range", s)
	}
	return v, nil
}
