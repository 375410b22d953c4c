package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rbenyoussef/wird/internal/library"
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/session"
)

// ErrUnavailable signals that no candidate source across the whole
// priority list could supply the verse's audio.
var ErrUnavailable = errors.New("no source available for verse")

// Library is the read access the resolver needs to the entity store.
type Library interface {
	Reciter(id string) (*library.Reciter, error)
	SegmentsCovering(reciterID string, v quran.VerseRef) ([]library.Segment, error)
	SourcesFor(reciterID string) ([]library.RemoteSource, error)
	Recording(id string) (*library.Recording, error)
}

// Cache is the source cache contract the resolver consults for remote
// candidates.
type Cache interface {
	IsObtainable(ctx context.Context, v quran.VerseRef, src library.RemoteSource) bool
	LocalPath(v quran.VerseRef, src library.RemoteSource) (string, error)
}

// Resolver performs the ranked, tradition-gated candidate search.
type Resolver struct {
	lib   Library
	cache Cache
	log   zerolog.Logger
}

// New creates a resolver over a library and cache.
func New(lib Library, cache Cache, log zerolog.Logger) *Resolver {
	return &Resolver{
		lib:   lib,
		cache: cache,
		log:   log.With().Str("component", "resolver").Logger(),
	}
}

// candidate is one rankable source option for a verse.
type candidate struct {
	rank     *int
	personal bool

	// personal
	seg library.Segment
	rec *library.Recording

	// remote
	src library.RemoteSource
}

// Resolve returns the first obtainable candidate for the verse under the
// snapshot's active priority list, or ErrUnavailable. The search is
// deterministic and never retries a failed candidate within one call.
func (r *Resolver) Resolve(ctx context.Context, v quran.VerseRef, snap session.Snapshot) (*PlayableItem, error) {
	for _, reciterID := range snap.ActivePriority(v).EnabledIDs() {
		reciter, err := r.lib.Reciter(reciterID)
		if err != nil {
			r.log.Warn().Str("reciter", reciterID).Err(err).Msg("priority entry not in library")
			continue
		}

		candidates, err := r.gather(reciterID, v)
		if err != nil {
			return nil, fmt.Errorf("gather candidates for %s: %w", v, err)
		}
		rankCandidates(candidates)

		for _, c := range candidates {
			// Tradition gate comes before any cache consultation. A
			// segment's own tag wins over its reciter's.
			if c.tradition() != snap.Tradition {
				continue
			}
			item, ok := r.tryCandidate(ctx, c, v, reciter)
			if ok {
				return item, nil
			}
		}
	}
	return nil, ErrUnavailable
}

// gather collects a reciter's personal segments satisfying the verse plus
// their registered remote sources.
func (r *Resolver) gather(reciterID string, v quran.VerseRef) ([]candidate, error) {
	segs, err := r.lib.SegmentsCovering(reciterID, v)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, seg := range segs {
		rec, err := r.lib.Recording(seg.RecordingID)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{rank: seg.Rank, personal: true, seg: seg, rec: rec})
	}

	sources, err := r.lib.SourcesFor(reciterID)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		c := candidate{src: src}
		// A zero rank means the source was never explicitly ranked.
		if src.Rank > 0 {
			rank := src.Rank
			c.rank = &rank
		}
		out = append(out, c)
	}
	return out, nil
}

func (c candidate) tradition() session.Tradition {
	if c.personal {
		return c.seg.Tradition
	}
	return c.src.Tradition
}

// rankCandidates orders candidates: explicit rank ascending with "no
// rank" last, then personal before remote, then manual annotations,
// confidence descending, and recording recency descending.
func rankCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		switch {
		case a.rank != nil && b.rank == nil:
			return true
		case a.rank == nil && b.rank != nil:
			return false
		case a.rank != nil && b.rank != nil && *a.rank != *b.rank:
			return *a.rank < *b.rank
		}
		if a.personal != b.personal {
			return a.personal
		}
		if a.personal && b.personal {
			if a.seg.Manual != b.seg.Manual {
				return a.seg.Manual
			}
			if a.seg.Confidence != b.seg.Confidence {
				return a.seg.Confidence > b.seg.Confidence
			}
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return false
	})
}

// tryCandidate verifies obtainability and builds the item.
func (r *Resolver) tryCandidate(ctx context.Context, c candidate, v quran.VerseRef, reciter *library.Reciter) (*PlayableItem, bool) {
	if c.personal {
		if _, err := os.Stat(c.rec.Path); err != nil {
			r.log.Debug().Str("recording", c.rec.Path).Msg("recording file missing")
			return nil, false
		}
		return segmentItem(c.seg, c.rec, v, reciter), true
	}

	if !r.cache.IsObtainable(ctx, v, c.src) {
		r.log.Debug().Str("verse", v.String()).Str("source", c.src.ID).Msg("source unobtainable")
		return nil, false
	}
	path, err := r.cache.LocalPath(v, c.src)
	if err != nil {
		return nil, false
	}
	return &PlayableItem{
		Locator:     path,
		Covers:      quran.Single(v),
		Kind:        KindRemote,
		DisplayName: v.String(),
		ReciterName: reciter.Name,
	}, true
}

// segmentItem computes the playback window for a segment satisfying the
// verse. A segment with a recorded join splits there: the opening verse
// plays [Start, Join], the closing verse [Join, End]. Any other
// multi-verse segment plays its whole window, and the item's covered
// range lets the engine skip the subsumed queue entries.
func segmentItem(seg library.Segment, rec *library.Recording, v quran.VerseRef, reciter *library.Reciter) *PlayableItem {
	item := &PlayableItem{
		Locator:     rec.Path,
		Kind:        KindPersonal,
		DisplayName: v.String(),
		ReciterName: reciter.Name,
	}
	switch {
	case seg.JoinSplit() && v == seg.Covers.Start:
		item.Start, item.End = seg.Start, seg.Join
		item.Covers = quran.Single(v)
	case seg.JoinSplit() && v == seg.Covers.End:
		item.Start, item.End = seg.Join, seg.End
		item.Covers = quran.Single(v)
	case seg.CrossBoundary():
		item.Start, item.End = seg.Start, seg.End
		item.Covers = seg.Covers
		item.DisplayName = seg.Covers.String()
	default:
		item.Start, item.End = seg.Start, seg.End
		item.Covers = quran.Single(v)
	}
	return item
}
