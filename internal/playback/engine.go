package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rbenyoussef/wird/internal/platform"
	"github.com/rbenyoussef/wird/internal/player"
	"github.com/rbenyoussef/wird/internal/queue"
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/resolver"
	"github.com/rbenyoussef/wird/internal/session"
)

// minUnavailableGap bounds the silence inserted for a verse with no
// available audio, so the session never skips a verse inaudibly fast.
const minUnavailableGap = 500 * time.Millisecond

// Resolver supplies audio for one verse under a snapshot.
type Resolver interface {
	Resolve(ctx context.Context, v quran.VerseRef, snap session.Snapshot) (*resolver.PlayableItem, error)
}

// Evictor removes a bad cached file so the next attempt re-fetches it.
type Evictor interface {
	Evict(path string) error
}

// Verify engine implements Service at compile time.
var _ Service = (*engine)(nil)

type engine struct {
	mu sync.RWMutex

	resolver Resolver
	graph    player.Graph
	evict    Evictor
	monitor  platform.Monitor
	layout   quran.PageLayout
	log      zerolog.Logger

	state State
	// token identifies the live session. Play, Stop, Seek, Next and
	// Previous mint a new one; async results carrying an old token are
	// discarded.
	token uuid.UUID
	snap  session.Snapshot
	queue []quran.VerseRef
	index int

	// current is the item whose audio is in the graph; its covered
	// range drives subsumed-verse skipping on advance.
	current     *resolver.PlayableItem
	completions int
	pass        int
	interrupted bool

	subs   []*Subscription
	subsMu sync.RWMutex

	done   chan struct{}
	closed bool
}

// New creates the playback engine. The monitor may be nil when the
// platform has no audio-session notifications; evict may be nil when no
// cache eviction is possible; layout is only needed for page-based
// continuation.
func New(res Resolver, graph player.Graph, evict Evictor, mon platform.Monitor, layout quran.PageLayout, log zerolog.Logger) Service {
	e := &engine{
		resolver: res,
		graph:    graph,
		evict:    evict,
		monitor:  mon,
		layout:   layout,
		log:      log.With().Str("component", "playback").Logger(),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
	if mon != nil {
		go e.watchPlatform()
	}
	return e
}

// Play starts a new session over the range under the snapshot. Any prior
// session is invalidated.
func (e *engine) Play(rng quran.VerseRange, snap session.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	if err := rng.Validate(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	q := queue.Build(rng, snap)
	if len(q) == 0 {
		return errors.New("start playback: empty verse sequence")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("start playback: engine closed")
	}

	e.graph.Stop()
	e.token = uuid.New()
	e.snap = snap
	e.snap.Range = rng
	e.queue = q
	e.index = 0
	e.completions = 0
	e.pass = 1
	e.current = nil
	e.interrupted = false
	e.loadLocked()
	return nil
}

// Pause stops the audio and records the paused state. A no-op outside
// Playing.
func (e *engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePlaying {
		return nil
	}
	e.graph.Pause()
	e.setStateLocked(StatePaused)
	return nil
}

// Resume restarts paused audio.
func (e *engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return nil
	}
	e.graph.Resume()
	e.setStateLocked(StatePlaying)
	return nil
}

// Toggle switches between Playing and Paused.
func (e *engine) Toggle() error {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()
	switch state {
	case StatePlaying:
		return e.Pause()
	case StatePaused:
		return e.Resume()
	default:
		return nil
	}
}

// Stop ends the session: invalidates the token, silences the graph and
// returns to Idle.
func (e *engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSessionLocked()
	return nil
}

// Next skips to the following queue entry, or restarts the current verse
// when already at the end.
func (e *engine) Next() error {
	return e.skip(+1)
}

// Previous retreats one queue entry, or restarts the current verse when
// at the start.
func (e *engine) Previous() error {
	return e.skip(-1)
}

func (e *engine) skip(delta int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsActive() || len(e.queue) == 0 {
		return errors.New("skip: no active session")
	}
	e.token = uuid.New()
	e.graph.Stop()
	if next := e.index + delta; next >= 0 && next < len(e.queue) {
		e.index = next
	}
	e.completions = 0
	e.current = nil
	e.loadLocked()
	return nil
}

// Seek jumps the session to a verse and rebuilds the remaining sequence
// from there.
func (e *engine) Seek(v quran.VerseRef) error {
	if !v.Valid() {
		return fmt.Errorf("seek: invalid verse %s", v)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsActive() || len(e.queue) == 0 {
		return errors.New("seek: no active session")
	}

	e.token = uuid.New()
	e.graph.Stop()
	e.completions = 0
	e.current = nil

	for i, q := range e.queue {
		if q == v {
			e.index = i
			e.loadLocked()
			return nil
		}
	}

	// Outside the current queue: rebuild the remaining sequence from the
	// target, dropping connection verses. A target past the session's end
	// leaves just the target to play.
	end := e.snap.Range.End
	if v.After(end) {
		end = v
	}
	sub := e.snap
	sub.ConnectBefore = false
	sub.ConnectAfter = false
	e.queue = queue.Build(quran.VerseRange{Start: v, End: end}, sub)
	e.index = 0
	e.loadLocked()
	return nil
}

// State returns the engine state.
func (e *engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Current returns a snapshot of the verse in progress, or nil.
func (e *engine) Current() *Current {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.state.IsActive() || e.index >= len(e.queue) {
		return nil
	}
	cur := &Current{
		Verse:       e.queue[e.index],
		Index:       e.index,
		QueueLen:    len(e.queue),
		Completions: e.completions,
		Pass:        e.pass,
	}
	if e.current != nil {
		cur.DisplayName = e.current.DisplayName
		cur.ReciterName = e.current.ReciterName
	}
	return cur
}

// Snapshot returns the settings the session was started with.
func (e *engine) Snapshot() session.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Position returns elapsed time within the current segment.
func (e *engine) Position() time.Duration {
	return e.graph.Position()
}

// Duration returns the current segment's length.
func (e *engine) Duration() time.Duration {
	return e.graph.Duration()
}

// Subscribe creates a new event subscription.
func (e *engine) Subscribe() *Subscription {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	sub := newSubscription()
	e.subs = append(e.subs, sub)
	return sub
}

// Close shuts down the engine.
func (e *engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.token = uuid.New()
	e.graph.Stop()
	close(e.done)
	e.mu.Unlock()

	e.subsMu.Lock()
	for _, sub := range e.subs {
		sub.close()
	}
	e.subs = nil
	e.subsMu.Unlock()

	return nil
}

// loadLocked enters Loading for the verse at the current index and kicks
// off resolution. The resolver runs without the engine lock; its result
// is applied only if the session token still matches.
func (e *engine) loadLocked() {
	e.setStateLocked(StateLoading)

	token := e.token
	v := e.queue[e.index]
	snap := e.snap
	go func() {
		item, err := e.resolver.Resolve(context.Background(), v, snap)

		e.mu.Lock()
		defer e.mu.Unlock()
		if token != e.token {
			e.log.Debug().Str("verse", v.String()).Msg("discarding stale resolution")
			return
		}
		if err != nil {
			if !errors.Is(err, resolver.ErrUnavailable) {
				e.sendErrorLocked("resolve", err)
			}
			e.handleUnavailableLocked(v, token)
			return
		}
		e.scheduleLocked(item, v, token)
	}()
}

// scheduleLocked pushes a resolved item into the audio graph.
func (e *engine) scheduleLocked(item *resolver.PlayableItem, v quran.VerseRef, token uuid.UUID) {
	opts := player.Options{
		Rate:      e.snap.Speed,
		Normalize: true,
		Clarity:   item.Kind == resolver.KindPersonal,
	}
	if err := e.graph.Schedule(item, opts, token, e.onSegmentDone); err != nil {
		if errors.Is(err, player.ErrDeviceInit) {
			e.sendErrorLocked("schedule", err)
			e.setStateLocked(StateError)
			return
		}
		// Corrupt or unreadable audio. Evict the cached copy so the
		// next attempt re-fetches, then treat the verse as unavailable.
		e.log.Warn().Str("verse", v.String()).Str("locator", item.Locator).Err(err).Msg("item failed to load")
		if item.Kind == resolver.KindRemote && e.evict != nil {
			if eerr := e.evict.Evict(item.Locator); eerr != nil {
				e.log.Warn().Str("locator", item.Locator).Err(eerr).Msg("evict failed")
			}
		}
		e.handleUnavailableLocked(v, token)
		return
	}

	e.current = item
	e.setStateLocked(StatePlaying)
	e.publish(func(sub *Subscription) {
		sub.sendVerse(VerseChange{
			Verse:       v,
			Index:       e.index,
			QueueLen:    len(e.queue),
			DisplayName: item.DisplayName,
			ReciterName: item.ReciterName,
			Rate:        e.snap.Speed,
		})
	})
}

// handleUnavailableLocked emits the unavailable marker, plays a bounded
// silence gap in place of the verse, then advances.
func (e *engine) handleUnavailableLocked(v quran.VerseRef, token uuid.UUID) {
	e.log.Warn().Str("verse", v.String()).Msg("no audio available")
	e.publish(func(sub *Subscription) { sub.sendUnavailable(Unavailable{Verse: v}) })

	gap := e.snap.Gap
	if gap < minUnavailableGap {
		gap = minUnavailableGap
	}
	e.graph.ScheduleSilence(gap, token, func(t uuid.UUID) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if t != e.token {
			return
		}
		e.setStateLocked(StateAwaitingNextVerse)
		e.advanceLocked(false)
	})
}

// onSegmentDone is the graph completion callback. It carries the token
// the segment was scheduled under; stale completions are discarded.
func (e *engine) onSegmentDone(token uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if token != e.token || e.state != StatePlaying {
		return
	}

	e.completions++
	v := e.queue[e.index]
	e.publish(func(sub *Subscription) {
		sub.sendRepeat(RepeatProgress{
			Verse:      v,
			Completed:  e.completions,
			Target:     e.snap.VerseRepeat,
			Pass:       e.pass,
			PassTarget: e.snap.RangeRepeat,
		})
	})

	if !e.snap.VerseRepeat.Reached(e.completions) {
		e.setStateLocked(StateAwaitingRepeat)
		e.afterGapLocked(e.loadLocked)
		return
	}

	e.setStateLocked(StateAwaitingNextVerse)
	e.advanceLocked(true)
}

// advanceLocked moves past the current verse: skips entries subsumed by
// the just-played item's covered range, then either loads the next
// verse, starts the next range pass, or completes the range.
func (e *engine) advanceLocked(gapped bool) {
	next := e.index + 1
	for e.current != nil && next < len(e.queue) && e.current.Covers.Contains(e.queue[next]) {
		next++
	}
	e.current = nil
	e.completions = 0

	if next < len(e.queue) {
		e.index = next
		e.stepLocked(gapped)
		return
	}

	if !e.snap.RangeRepeat.Reached(e.pass) {
		e.pass++
		e.index = 0
		e.stepLocked(gapped)
		return
	}

	e.setStateLocked(StateRangeComplete)
	e.continueSessionLocked(gapped)
}

func (e *engine) stepLocked(gapped bool) {
	if gapped {
		e.afterGapLocked(e.loadLocked)
		return
	}
	e.loadLocked()
}

// continueSessionLocked applies the post-range action. A continuation
// that cannot be built (text exhausted) falls back to stop.
func (e *engine) continueSessionLocked(gapped bool) {
	var cont []quran.VerseRef
	switch e.snap.PostRange.Kind {
	case session.PostRangeContinueVerses:
		if next, ok := e.queue[len(e.queue)-1].Successor(); ok {
			cont = queue.BuildContinuation(next, e.snap.PostRange.Count)
		}
	case session.PostRangeContinuePages:
		cont = queue.BuildPageContinuation(e.queue[len(e.queue)-1], e.snap.PostRange.Count, e.layout)
	}
	if len(cont) == 0 {
		e.stopSessionLocked()
		return
	}

	e.queue = cont
	e.snap.Range = quran.VerseRange{Start: cont[0], End: cont[len(cont)-1]}
	e.index = 0
	e.completions = 0
	e.pass = 1
	e.stepLocked(gapped)
}

// afterGapLocked runs next after the configured inter-verse gap. next is
// invoked with the engine lock held and only if the session is still
// live.
func (e *engine) afterGapLocked(next func()) {
	if e.snap.Gap <= 0 {
		next()
		return
	}
	token := e.token
	e.graph.ScheduleSilence(e.snap.Gap, token, func(t uuid.UUID) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if t != e.token {
			return
		}
		next()
	})
}

// stopSessionLocked clears all transient session state.
func (e *engine) stopSessionLocked() {
	e.token = uuid.New()
	e.graph.Stop()
	e.current = nil
	e.queue = nil
	e.index = 0
	e.completions = 0
	e.pass = 0
	e.interrupted = false
	e.setStateLocked(StateIdle)
}

func (e *engine) watchPlatform() {
	for {
		select {
		case <-e.done:
			return
		case ev, ok := <-e.monitor.Events():
			if !ok {
				return
			}
			e.handlePlatformEvent(ev)
		}
	}
}

// handlePlatformEvent applies the interruption-recovery rules: pause on
// interruption begin; on end, resume only with the platform's blessing,
// rebuilding the graph first if the output was torn down; never
// auto-resume after the output device disappeared.
func (e *engine) handlePlatformEvent(ev platform.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case platform.InterruptionBegan:
		if e.state == StatePlaying {
			e.graph.Pause()
			e.setStateLocked(StatePaused)
			e.interrupted = true
		}

	case platform.InterruptionEnded:
		if !e.interrupted {
			return
		}
		e.interrupted = false
		if !ev.Resume || e.state != StatePaused {
			return
		}
		if ev.OutputStopped {
			e.rescheduleLocked()
			return
		}
		e.graph.Resume()
		e.setStateLocked(StatePlaying)

	case platform.RouteChanged:
		if ev.DeviceGone && e.state == StatePlaying {
			e.graph.Pause()
			e.setStateLocked(StatePaused)
			e.interrupted = false
		}

	case platform.GraphInvalidated:
		if !e.state.IsActive() {
			return
		}
		e.rescheduleLocked()
	}
}

// rescheduleLocked rebuilds the audio graph and restarts the current
// verse from the verse level; the exact sample position cannot be
// trusted after the output was torn down.
func (e *engine) rescheduleLocked() {
	if err := e.graph.Rebuild(); err != nil {
		e.sendErrorLocked("rebuild", err)
		e.setStateLocked(StateError)
		return
	}
	if e.index >= len(e.queue) {
		e.stopSessionLocked()
		return
	}
	e.token = uuid.New()
	e.loadLocked()
}

func (e *engine) setStateLocked(s State) {
	if s == e.state {
		return
	}
	prev := e.state
	e.state = s
	e.publish(func(sub *Subscription) { sub.sendState(StateChange{Previous: prev, Current: s}) })
}

func (e *engine) sendErrorLocked(op string, err error) {
	e.log.Error().Str("op", op).Err(err).Msg("playback error")
	e.publish(func(sub *Subscription) { sub.sendError(ErrorEvent{Operation: op, Err: err}) })
}

func (e *engine) publish(fn func(*Subscription)) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	for _, sub := range e.subs {
		fn(sub)
	}
}
