// Package queue expands a settings snapshot and verse range into the flat
// ordered sequence of verses a session will visit, and builds the
// post-range continuation sequences.
package queue

import (
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/session"
)

// Build returns the ordered verse sequence for a range under a snapshot:
// an optional connection verse before, the range itself, and an optional
// connection verse after. Walking stops quietly if the text ends before
// the range does.
func Build(rng quran.VerseRange, snap session.Snapshot) []quran.VerseRef {
	var out []quran.VerseRef

	if snap.ConnectBefore {
		if prev, ok := rng.Start.Predecessor(); ok {
			out = append(out, prev)
		}
	}

	v := rng.Start
	for {
		out = append(out, v)
		if v == rng.End {
			break
		}
		next, ok := v.Successor()
		if !ok {
			break
		}
		v = next
	}

	if snap.ConnectAfter {
		if next, ok := rng.End.Successor(); ok {
			out = append(out, next)
		}
	}

	return out
}

// BuildContinuation walks forward count verses starting at from,
// truncating at the end of the text.
func BuildContinuation(from quran.VerseRef, count int) []quran.VerseRef {
	if count <= 0 || !from.Valid() {
		return nil
	}
	out := make([]quran.VerseRef, 0, count)
	v := from
	for i := 0; i < count; i++ {
		out = append(out, v)
		next, ok := v.Successor()
		if !ok {
			break
		}
		v = next
	}
	return out
}

// BuildPageContinuation builds the sequence continuing after the last
// played verse through the next `pages` page boundaries, from the exact
// layout table. Finishing a partially played page counts as the first
// boundary; whole pages are only appended from a page-closing verse.
// Returns nil when the text is exhausted.
func BuildPageContinuation(afterLast quran.VerseRef, pages int, layout quran.PageLayout) []quran.VerseRef {
	if pages <= 0 || layout == nil {
		return nil
	}
	start, ok := afterLast.Successor()
	if !ok {
		return nil
	}
	basePage, ok := layout.PageOf(afterLast)
	if !ok {
		return nil
	}
	_, basePageLast, ok := layout.PageBounds(basePage)
	if !ok {
		return nil
	}
	// From mid-page, finishing the current page is the first boundary;
	// only a page-closing verse starts the count at the next page.
	endPage := basePage + pages - 1
	if afterLast == basePageLast {
		endPage = basePage + pages
	}
	if endPage > layout.PageCount() {
		endPage = layout.PageCount()
	}
	_, last, ok := layout.PageBounds(endPage)
	if !ok {
		return nil
	}
	if last.Before(start) {
		return nil
	}

	var out []quran.VerseRef
	v := start
	for {
		out = append(out, v)
		if v == last {
			break
		}
		next, ok := v.Successor()
		if !ok {
			break
		}
		v = next
	}
	return out
}
