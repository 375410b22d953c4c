package player

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbenyoussef/wird/internal/resolver"
)

// ScheduledItem records one Schedule call for assertions.
type ScheduledItem struct {
	Item  *resolver.PlayableItem
	Opts  Options
	Token uuid.UUID
}

// Mock is a test double for Graph. Tests drive completion explicitly
// with CompleteCurrent.
type Mock struct {
	mu sync.Mutex

	scheduled []ScheduledItem
	silences  []time.Duration
	paused    bool
	stops     int
	rebuilds  int

	scheduleErr error
	failPaths   map[string]error
	rebuildErr  error

	position time.Duration
	duration time.Duration

	pendingToken  uuid.UUID
	pendingDone   DoneFunc
	pendingActive bool
}

// NewMock creates a mock graph.
func NewMock() *Mock {
	return &Mock{failPaths: make(map[string]error)}
}

func (m *Mock) Schedule(item *resolver.PlayableItem, opts Options, token uuid.UUID, onDone DoneFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduleErr != nil {
		return m.scheduleErr
	}
	if err, ok := m.failPaths[item.Locator]; ok {
		return err
	}
	m.scheduled = append(m.scheduled, ScheduledItem{Item: item, Opts: opts, Token: token})
	m.pendingToken = token
	m.pendingDone = onDone
	m.pendingActive = true
	m.paused = false
	return nil
}

func (m *Mock) ScheduleSilence(d time.Duration, token uuid.UUID, onDone DoneFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silences = append(m.silences, d)
	m.pendingToken = token
	m.pendingDone = onDone
	m.pendingActive = true
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.pendingActive = false
	m.pendingDone = nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

func (m *Mock) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) Rebuild() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds++
	m.pendingActive = false
	m.pendingDone = nil
	return m.rebuildErr
}

func (m *Mock) Close() {}

// Test helpers

// CompleteCurrent fires the pending completion callback synchronously,
// as if the scheduled segment played to its end.
func (m *Mock) CompleteCurrent() bool {
	m.mu.Lock()
	if !m.pendingActive || m.pendingDone == nil {
		m.mu.Unlock()
		return false
	}
	done := m.pendingDone
	token := m.pendingToken
	m.pendingActive = false
	m.pendingDone = nil
	m.mu.Unlock()

	done(token)
	return true
}

func (m *Mock) Scheduled() []ScheduledItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScheduledItem(nil), m.scheduled...)
}

func (m *Mock) Silences() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.silences...)
}

func (m *Mock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Mock) Rebuilds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuilds
}

func (m *Mock) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingActive
}

func (m *Mock) SetScheduleError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleErr = err
}

// FailPath makes Schedule fail for one locator, simulating a corrupt
// or unreadable file.
func (m *Mock) FailPath(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPaths[path] = err
}

func (m *Mock) SetPosition(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
}

func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}
