package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rbenyoussef/wird/internal/platform"
	"github.com/rbenyoussef/wird/internal/player"
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/resolver"
	"github.com/rbenyoussef/wird/internal/session"
)

// fakeResolver serves synthetic items for any verse, with per-verse
// overrides and an optional gate to hold resolutions in flight.
type fakeResolver struct {
	mu          sync.Mutex
	items       map[quran.VerseRef]*resolver.PlayableItem
	unavailable map[quran.VerseRef]bool
	gate        chan struct{}
	calls       []quran.VerseRef
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		items:       make(map[quran.VerseRef]*resolver.PlayableItem),
		unavailable: make(map[quran.VerseRef]bool),
	}
}

func (f *fakeResolver) Resolve(_ context.Context, v quran.VerseRef, _ session.Snapshot) (*resolver.PlayableItem, error) {
	f.mu.Lock()
	gate := f.gate
	f.calls = append(f.calls, v)
	unavailable := f.unavailable[v]
	item := f.items[v]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if unavailable {
		return nil, resolver.ErrUnavailable
	}
	if item != nil {
		return item, nil
	}
	return &resolver.PlayableItem{
		Locator:     "/audio/" + v.String() + ".mp3",
		Covers:      quran.Single(v),
		Kind:        resolver.KindRemote,
		DisplayName: v.String(),
		ReciterName: "Test Reciter",
	}, nil
}

func (f *fakeResolver) Calls() []quran.VerseRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]quran.VerseRef(nil), f.calls...)
}

type fakeEvictor struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeEvictor) Evict(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return nil
}

func (f *fakeEvictor) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func testSnap(rng quran.VerseRange) session.Snapshot {
	return session.Snapshot{
		Range:       rng,
		Tradition:   session.Hafs,
		Speed:       1.0,
		VerseRepeat: 1,
		RangeRepeat: 1,
		Priority:    session.PriorityList{{ReciterID: "r1", Enabled: true}},
	}
}

func rng(c1, v1, c2, v2 int) quran.VerseRange {
	return quran.VerseRange{
		Start: quran.VerseRef{Chapter: c1, Verse: v1},
		End:   quran.VerseRef{Chapter: c2, Verse: v2},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitScheduled(t *testing.T, g *player.Mock, n int) {
	t.Helper()
	waitFor(t, "scheduled items", func() bool { return len(g.Scheduled()) >= n })
}

func scheduledVerse(t *testing.T, g *player.Mock, i int) quran.VerseRef {
	t.Helper()
	items := g.Scheduled()
	if i >= len(items) {
		t.Fatalf("no scheduled item %d (have %d)", i, len(items))
	}
	return items[i].Item.Covers.Start
}

func TestEngine_PlaySchedulesFirstVerse(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitScheduled(t, g, 1)
	if v := scheduledVerse(t, g, 0); (v != quran.VerseRef{Chapter: 1, Verse: 1}) {
		t.Errorf("first scheduled verse = %s, want 1:1", v)
	}
	waitFor(t, "playing state", func() bool { return e.State() == StatePlaying })
}

func TestEngine_PlayRejectsInvalidInput(t *testing.T) {
	e := New(newFakeResolver(), player.NewMock(), nil, nil, nil, zerolog.Nop())
	defer e.Close()

	bad := testSnap(rng(1, 1, 1, 3))
	bad.Speed = 0
	if err := e.Play(rng(1, 1, 1, 3), bad); err == nil {
		t.Error("Play with zero speed should fail")
	}
	if err := e.Play(rng(1, 5, 1, 1), testSnap(rng(1, 1, 1, 3))); err == nil {
		t.Error("Play with reversed range should fail")
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v after rejected Play, want Idle", e.State())
	}
}

func TestEngine_AdvancesThroughRange(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}

	want := []quran.VerseRef{{Chapter: 1, Verse: 1}, {Chapter: 1, Verse: 2}, {Chapter: 1, Verse: 3}}
	for i, v := range want {
		waitScheduled(t, g, i+1)
		if got := scheduledVerse(t, g, i); got != v {
			t.Errorf("scheduled[%d] = %s, want %s", i, got, v)
		}
		g.CompleteCurrent()
	}

	waitFor(t, "idle after range", func() bool { return e.State() == StateIdle })
}

func TestEngine_VerseRepeatTransitionsOnThirdCompletion(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()
	sub := e.Subscribe()

	snap := testSnap(rng(1, 1, 1, 2))
	snap.VerseRepeat = 3
	if err := e.Play(rng(1, 1, 1, 2), snap); err != nil {
		t.Fatalf("Play: %v", err)
	}

	v1 := quran.VerseRef{Chapter: 1, Verse: 1}
	for i := 0; i < 3; i++ {
		waitScheduled(t, g, i+1)
		if got := scheduledVerse(t, g, i); got != v1 {
			t.Fatalf("play %d scheduled %s, want %s", i+1, got, v1)
		}
		g.CompleteCurrent()
	}

	// Exactly on the 3rd completion the engine moves to the next verse.
	waitScheduled(t, g, 4)
	if got := scheduledVerse(t, g, 3); (got != quran.VerseRef{Chapter: 1, Verse: 2}) {
		t.Errorf("4th schedule = %s, want 1:2", got)
	}

	var completed []int
	for len(completed) < 3 {
		select {
		case ev := <-sub.RepeatChanged:
			if ev.Verse == v1 {
				completed = append(completed, ev.Completed)
			}
		case <-time.After(time.Second):
			t.Fatal("missing repeat progress events")
		}
	}
	for i, c := range completed {
		if c != i+1 {
			t.Errorf("repeat progress %d = %d, want %d", i, c, i+1)
		}
	}
}

func TestEngine_InfiniteVerseRepeatNeverAdvances(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	snap := testSnap(rng(1, 1, 1, 2))
	snap.VerseRepeat = session.Infinite
	if err := e.Play(rng(1, 1, 1, 2), snap); err != nil {
		t.Fatalf("Play: %v", err)
	}

	v1 := quran.VerseRef{Chapter: 1, Verse: 1}
	for i := 0; i < 5; i++ {
		waitScheduled(t, g, i+1)
		if got := scheduledVerse(t, g, i); got != v1 {
			t.Fatalf("play %d scheduled %s, want %s", i+1, got, v1)
		}
		g.CompleteCurrent()
	}
}

func TestEngine_RangeRepeatThenContinuation(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	r := rng(2, 1, 2, 10)
	snap := testSnap(r)
	snap.RangeRepeat = 5
	snap.PostRange = session.PostRangeAction{Kind: session.PostRangeContinueVerses, Count: 10}
	if err := e.Play(r, snap); err != nil {
		t.Fatalf("Play: %v", err)
	}

	count := 0
	for pass := 1; pass <= 5; pass++ {
		for i := 0; i < 10; i++ {
			count++
			waitScheduled(t, g, count)
			g.CompleteCurrent()
		}
	}

	// After the 5th full pass, the next scheduled verse is the one
	// immediately after the original range's end, with repeats reset.
	waitScheduled(t, g, count+1)
	if got := scheduledVerse(t, g, count); (got != quran.VerseRef{Chapter: 2, Verse: 11}) {
		t.Errorf("continuation start = %s, want 2:11", got)
	}
	cur := e.Current()
	if cur == nil {
		t.Fatal("Current() = nil during continuation")
	}
	if cur.Completions != 0 {
		t.Errorf("Completions = %d after continuation, want 0", cur.Completions)
	}
	if cur.Pass != 1 {
		t.Errorf("Pass = %d after continuation, want 1", cur.Pass)
	}
}

func TestEngine_ContinuationExhaustedFallsBackToStop(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	// A range ending at the last verse of the text has nowhere to
	// continue.
	r := quran.VerseRange{Start: quran.VerseRef{Chapter: 114, Verse: 5}, End: quran.Last}
	snap := testSnap(r)
	snap.PostRange = session.PostRangeAction{Kind: session.PostRangeContinueVerses, Count: 10}
	if err := e.Play(r, snap); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitScheduled(t, g, 1)
	g.CompleteCurrent()
	waitScheduled(t, g, 2)
	g.CompleteCurrent()

	waitFor(t, "idle after exhausted continuation", func() bool { return e.State() == StateIdle })
}

func TestEngine_UnavailableVerse(t *testing.T) {
	f := newFakeResolver()
	f.unavailable[quran.VerseRef{Chapter: 1, Verse: 2}] = true
	g := player.NewMock()
	e := New(f, g, nil, nil, nil, zerolog.Nop())
	defer e.Close()
	sub := e.Subscribe()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitScheduled(t, g, 1)
	g.CompleteCurrent()

	// 1:2 exhausts all sources: one marker, one silence gap, then
	// playback continues to 1:3 unattended.
	select {
	case ev := <-sub.Unavailable:
		if (ev.Verse != quran.VerseRef{Chapter: 1, Verse: 2}) {
			t.Errorf("unavailable verse = %s, want 1:2", ev.Verse)
		}
	case <-time.After(time.Second):
		t.Fatal("no unavailable event")
	}
	waitFor(t, "silence gap", func() bool { return len(g.Silences()) == 1 })
	if g.Silences()[0] < minUnavailableGap {
		t.Errorf("silence = %v, want at least %v", g.Silences()[0], minUnavailableGap)
	}
	g.CompleteCurrent()

	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 1, Verse: 3}) {
		t.Errorf("verse after gap = %s, want 1:3", got)
	}

	select {
	case ev := <-sub.Unavailable:
		t.Errorf("second unavailable event for %s", ev.Verse)
	default:
	}
}

func TestEngine_CorruptItemEvictedAndSkipped(t *testing.T) {
	g := player.NewMock()
	g.FailPath("/audio/1:1.mp3", errors.New("truncated frame"))
	ev := &fakeEvictor{}
	e := New(newFakeResolver(), g, ev, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 2), testSnap(rng(1, 1, 1, 2))); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitFor(t, "eviction", func() bool { return len(ev.Paths()) == 1 })
	if ev.Paths()[0] != "/audio/1:1.mp3" {
		t.Errorf("evicted %q", ev.Paths()[0])
	}
	waitFor(t, "silence gap", func() bool { return len(g.Silences()) == 1 })
	g.CompleteCurrent()

	waitScheduled(t, g, 1)
	if got := scheduledVerse(t, g, 0); (got != quran.VerseRef{Chapter: 1, Verse: 2}) {
		t.Errorf("next verse = %s, want 1:2", got)
	}
}

func TestEngine_DeviceInitFailureIsTerminal(t *testing.T) {
	g := player.NewMock()
	g.SetScheduleError(player.ErrDeviceInit)
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()
	sub := e.Subscribe()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitFor(t, "error state", func() bool { return e.State() == StateError })

	select {
	case ev := <-sub.Error:
		if !errors.Is(ev.Err, player.ErrDeviceInit) {
			t.Errorf("error event = %v", ev.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event")
	}

	// An explicit new Play recovers.
	g.SetScheduleError(nil)
	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play after error: %v", err)
	}
	waitFor(t, "playing after recovery", func() bool { return e.State() == StatePlaying })
}

func TestEngine_StaleResolutionDiscarded(t *testing.T) {
	f := newFakeResolver()
	f.gate = make(chan struct{})
	g := player.NewMock()
	e := New(f, g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 1), testSnap(rng(1, 1, 1, 1))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFor(t, "first resolution in flight", func() bool { return len(f.Calls()) == 1 })

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := e.Play(rng(3, 1, 3, 1), testSnap(rng(3, 1, 3, 1))); err != nil {
		t.Fatalf("second Play: %v", err)
	}
	waitFor(t, "second resolution in flight", func() bool { return len(f.Calls()) == 2 })

	// Release both; the superseded session's result must be discarded.
	f.gate <- struct{}{}
	f.gate <- struct{}{}

	waitScheduled(t, g, 1)
	time.Sleep(20 * time.Millisecond)
	items := g.Scheduled()
	if len(items) != 1 {
		t.Fatalf("scheduled %d items, want 1 (stale resolution applied?)", len(items))
	}
	if got := items[0].Item.Covers.Start; (got != quran.VerseRef{Chapter: 3, Verse: 1}) {
		t.Errorf("scheduled verse = %s, want 3:1", got)
	}
}

func TestEngine_SubsumedVersesSkipped(t *testing.T) {
	f := newFakeResolver()
	// One personal item covers 2:1 and 2:2 whole.
	f.items[quran.VerseRef{Chapter: 2, Verse: 1}] = &resolver.PlayableItem{
		Locator:     "/rec/long.mp3",
		Covers:      rng(2, 1, 2, 2),
		Kind:        resolver.KindPersonal,
		DisplayName: "2:1-2:2",
		ReciterName: "Me",
	}
	g := player.NewMock()
	e := New(f, g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(2, 1, 2, 3), testSnap(rng(2, 1, 2, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitScheduled(t, g, 1)
	g.CompleteCurrent()

	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 2, Verse: 3}) {
		t.Errorf("verse after covering item = %s, want 2:3 (2:2 subsumed)", got)
	}
}

func TestEngine_PauseResumeToggle(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFor(t, "playing", func() bool { return e.State() == StatePlaying })

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if e.State() != StatePaused || !g.Paused() {
		t.Error("engine should be paused")
	}

	if err := e.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if e.State() != StatePlaying || g.Paused() {
		t.Error("engine should be playing")
	}

	if err := e.Toggle(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if e.State() != StatePaused {
		t.Error("toggle should pause")
	}
}

func TestEngine_NextPreviousBoundaries(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitScheduled(t, g, 1)

	if err := e.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 1, Verse: 2}) {
		t.Errorf("after Next = %s, want 1:2", got)
	}

	if err := e.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	waitScheduled(t, g, 3)
	if got := scheduledVerse(t, g, 2); (got != quran.VerseRef{Chapter: 1, Verse: 1}) {
		t.Errorf("after Previous = %s, want 1:1", got)
	}

	// Previous at the queue start restarts the current verse.
	if err := e.Previous(); err != nil {
		t.Fatalf("Previous at start: %v", err)
	}
	waitScheduled(t, g, 4)
	if got := scheduledVerse(t, g, 3); (got != quran.VerseRef{Chapter: 1, Verse: 1}) {
		t.Errorf("Previous at start = %s, want 1:1 restart", got)
	}
}

func TestEngine_SkipWithoutSessionFails(t *testing.T) {
	e := New(newFakeResolver(), player.NewMock(), nil, nil, nil, zerolog.Nop())
	defer e.Close()
	if err := e.Next(); err == nil {
		t.Error("Next without session should fail")
	}
	if err := e.Seek(quran.VerseRef{Chapter: 1, Verse: 1}); err == nil {
		t.Error("Seek without session should fail")
	}
}

func TestEngine_SeekWithinQueue(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 7), testSnap(rng(1, 1, 1, 7))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitScheduled(t, g, 1)

	if err := e.Seek(quran.VerseRef{Chapter: 1, Verse: 5}); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 1, Verse: 5}) {
		t.Errorf("after Seek = %s, want 1:5", got)
	}

	if err := e.Seek(quran.VerseRef{Chapter: 0, Verse: 9}); err == nil {
		t.Error("Seek to an invalid verse should fail")
	}
}

func TestEngine_SeekOutsideQueueRebuilds(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(2, 5, 2, 8), testSnap(rng(2, 5, 2, 8))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitScheduled(t, g, 1)

	// A verse before the session range rebuilds the remaining sequence
	// from the target through the range end.
	if err := e.Seek(quran.VerseRef{Chapter: 2, Verse: 2}); err != nil {
		t.Fatalf("Seek before range: %v", err)
	}
	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 2, Verse: 2}) {
		t.Errorf("after Seek = %s, want 2:2", got)
	}
	g.CompleteCurrent()
	waitScheduled(t, g, 3)
	if got := scheduledVerse(t, g, 2); (got != quran.VerseRef{Chapter: 2, Verse: 3}) {
		t.Errorf("after advance = %s, want 2:3", got)
	}

	// A verse past the session end leaves just the target to play.
	if err := e.Seek(quran.VerseRef{Chapter: 9, Verse: 1}); err != nil {
		t.Fatalf("Seek past range: %v", err)
	}
	waitScheduled(t, g, 4)
	if got := scheduledVerse(t, g, 3); (got != quran.VerseRef{Chapter: 9, Verse: 1}) {
		t.Errorf("after Seek past end = %s, want 9:1", got)
	}
}

func TestEngine_InterruptionPausesAndResumes(t *testing.T) {
	g := player.NewMock()
	mon := platform.NewFake()
	e := New(newFakeResolver(), g, nil, mon, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFor(t, "playing", func() bool { return e.State() == StatePlaying })

	mon.Emit(platform.Event{Kind: platform.InterruptionBegan})
	waitFor(t, "paused on interruption", func() bool { return e.State() == StatePaused })

	mon.Emit(platform.Event{Kind: platform.InterruptionEnded, Resume: true})
	waitFor(t, "resumed after interruption", func() bool { return e.State() == StatePlaying })
}

func TestEngine_InterruptionEndedWithoutResumeHintStaysPaused(t *testing.T) {
	g := player.NewMock()
	mon := platform.NewFake()
	e := New(newFakeResolver(), g, nil, mon, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFor(t, "playing", func() bool { return e.State() == StatePlaying })

	mon.Emit(platform.Event{Kind: platform.InterruptionBegan})
	waitFor(t, "paused", func() bool { return e.State() == StatePaused })

	mon.Emit(platform.Event{Kind: platform.InterruptionEnded, Resume: false})
	time.Sleep(20 * time.Millisecond)
	if e.State() != StatePaused {
		t.Errorf("state = %v, want Paused without resume hint", e.State())
	}
}

func TestEngine_InterruptionWithStoppedOutputReschedules(t *testing.T) {
	g := player.NewMock()
	mon := platform.NewFake()
	e := New(newFakeResolver(), g, nil, mon, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitScheduled(t, g, 1)

	mon.Emit(platform.Event{Kind: platform.InterruptionBegan})
	waitFor(t, "paused", func() bool { return e.State() == StatePaused })

	mon.Emit(platform.Event{Kind: platform.InterruptionEnded, Resume: true, OutputStopped: true})
	waitFor(t, "graph rebuilt", func() bool { return g.Rebuilds() == 1 })

	// Rescheduled from the verse level, not a sample position.
	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 1, Verse: 1}) {
		t.Errorf("rescheduled verse = %s, want 1:1", got)
	}
	waitFor(t, "playing after rebuild", func() bool { return e.State() == StatePlaying })
}

func TestEngine_RouteChangeNeverAutoResumes(t *testing.T) {
	g := player.NewMock()
	mon := platform.NewFake()
	e := New(newFakeResolver(), g, nil, mon, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFor(t, "playing", func() bool { return e.State() == StatePlaying })

	mon.Emit(platform.Event{Kind: platform.RouteChanged, DeviceGone: true})
	waitFor(t, "paused on route change", func() bool { return e.State() == StatePaused })

	// A later interruption-ended must not resume what the route change
	// paused.
	mon.Emit(platform.Event{Kind: platform.InterruptionEnded, Resume: true})
	time.Sleep(20 * time.Millisecond)
	if e.State() != StatePaused {
		t.Errorf("state = %v, want Paused after route change", e.State())
	}
}

func TestEngine_GraphInvalidationRebuildsAndReschedules(t *testing.T) {
	g := player.NewMock()
	mon := platform.NewFake()
	e := New(newFakeResolver(), g, nil, mon, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitScheduled(t, g, 1)

	mon.Emit(platform.Event{Kind: platform.GraphInvalidated})
	waitFor(t, "rebuild", func() bool { return g.Rebuilds() == 1 })
	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 1, Verse: 1}) {
		t.Errorf("rescheduled verse = %s, want 1:1", got)
	}
}

func TestEngine_GapBetweenVerses(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	snap := testSnap(rng(1, 1, 1, 2))
	snap.Gap = 750 * time.Millisecond
	if err := e.Play(rng(1, 1, 1, 2), snap); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitScheduled(t, g, 1)
	g.CompleteCurrent()

	waitFor(t, "gap silence", func() bool { return len(g.Silences()) == 1 })
	if g.Silences()[0] != 750*time.Millisecond {
		t.Errorf("gap = %v, want 750ms", g.Silences()[0])
	}
	g.CompleteCurrent()

	waitScheduled(t, g, 2)
	if got := scheduledVerse(t, g, 1); (got != quran.VerseRef{Chapter: 1, Verse: 2}) {
		t.Errorf("verse after gap = %s, want 1:2", got)
	}
}

func TestEngine_StopInvalidatesSession(t *testing.T) {
	g := player.NewMock()
	e := New(newFakeResolver(), g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	if err := e.Play(rng(1, 1, 1, 3), testSnap(rng(1, 1, 1, 3))); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitScheduled(t, g, 1)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want Idle", e.State())
	}
	if e.Current() != nil {
		t.Error("Current() should be nil after Stop")
	}

	// A completion from the stopped session changes nothing.
	g.CompleteCurrent()
	time.Sleep(20 * time.Millisecond)
	if e.State() != StateIdle {
		t.Errorf("state = %v after stale completion, want Idle", e.State())
	}
}

func TestEngine_ClarityOnlyForPersonalItems(t *testing.T) {
	f := newFakeResolver()
	f.items[quran.VerseRef{Chapter: 1, Verse: 1}] = &resolver.PlayableItem{
		Locator: "/rec/own.mp3",
		Covers:  quran.Single(quran.VerseRef{Chapter: 1, Verse: 1}),
		Kind:    resolver.KindPersonal,
	}
	g := player.NewMock()
	e := New(f, g, nil, nil, nil, zerolog.Nop())
	defer e.Close()

	snap := testSnap(rng(1, 1, 1, 2))
	snap.Speed = 1.25
	if err := e.Play(rng(1, 1, 1, 2), snap); err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitScheduled(t, g, 1)
	g.CompleteCurrent()
	waitScheduled(t, g, 2)

	items := g.Scheduled()
	if !items[0].Opts.Clarity {
		t.Error("personal item should get the clarity filter")
	}
	if items[1].Opts.Clarity {
		t.Error("remote item should not get the clarity filter")
	}
	for i, it := range items {
		if it.Opts.Rate != 1.25 {
			t.Errorf("item %d rate = %v, want 1.25", i, it.Opts.Rate)
		}
		if !it.Opts.Normalize {
			t.Errorf("item %d should be normalized", i)
		}
	}
}
