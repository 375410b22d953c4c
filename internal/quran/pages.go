package quran

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// PageLayout answers exact page questions for a printed layout (the
// standard edition has 604 pages). Per-page verse counts are irregular, so
// page numbers always come from the table, never from arithmetic.
type PageLayout interface {
	// PageOf returns the page containing the verse.
	PageOf(v VerseRef) (int, bool)
	// PageBounds returns the first and last verse printed on the page.
	PageBounds(page int) (first, last VerseRef, ok bool)
	// PageCount returns the number of pages in the layout.
	PageCount() int
}

// TableLayout implements PageLayout from an explicit first-verse-per-page
// table. Page n spans from firsts[n-1] up to the verse before firsts[n]
// (or the end of text on the final page).
type TableLayout struct {
	firsts []VerseRef // firsts[i] is the first verse of page i+1
}

// NewTableLayout validates and builds a layout from per-page first verses.
// The first page must begin at 1:1 and entries must be strictly increasing.
func NewTableLayout(firsts []VerseRef) (*TableLayout, error) {
	if len(firsts) == 0 {
		return nil, fmt.Errorf("page layout: empty table")
	}
	if firsts[0] != First {
		return nil, fmt.Errorf("page layout: page 1 must start at %s, got %s", First, firsts[0])
	}
	for i, v := range firsts {
		if !v.Valid() {
			return nil, fmt.Errorf("page layout: page %d starts at invalid verse %s", i+1, v)
		}
		if i > 0 && !firsts[i-1].Before(v) {
			return nil, fmt.Errorf("page layout: page %d start %s not after page %d start %s",
				i+1, v, i, firsts[i-1])
		}
	}
	out := make([]VerseRef, len(firsts))
	copy(out, firsts)
	return &TableLayout{firsts: out}, nil
}

// pageEntry is the JSON form of one page's first verse.
type pageEntry struct {
	Page    int `json:"page"`
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

// LoadTableLayout reads a JSON array of {page, chapter, verse} entries.
func LoadTableLayout(r io.Reader) (*TableLayout, error) {
	var entries []pageEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("page layout: decode: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Page < entries[j].Page })
	firsts := make([]VerseRef, 0, len(entries))
	for i, e := range entries {
		if e.Page != i+1 {
			return nil, fmt.Errorf("page layout: expected page %d, got %d", i+1, e.Page)
		}
		firsts = append(firsts, VerseRef{Chapter: e.Chapter, Verse: e.Verse})
	}
	return NewTableLayout(firsts)
}

// PageCount returns the number of pages.
func (t *TableLayout) PageCount() int { return len(t.firsts) }

// PageOf returns the page containing v.
func (t *TableLayout) PageOf(v VerseRef) (int, bool) {
	if !v.Valid() {
		return 0, false
	}
	// First page whose start is after v; v lives on the page before it.
	i := sort.Search(len(t.firsts), func(i int) bool {
		return t.firsts[i].After(v)
	})
	if i == 0 {
		return 0, false
	}
	return i, true
}

// PageBounds returns the first and last verse on the page.
func (t *TableLayout) PageBounds(page int) (first, last VerseRef, ok bool) {
	if page < 1 || page > len(t.firsts) {
		return VerseRef{}, VerseRef{}, false
	}
	first = t.firsts[page-1]
	if page == len(t.firsts) {
		return first, Last, true
	}
	last, ok = t.firsts[page].Predecessor()
	return first, last, ok
}
