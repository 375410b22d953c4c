// Package platform abstracts audio-system notifications (interruptions,
// route changes, graph invalidation) so the engine's recovery logic can
// be driven without a real audio subsystem.
package platform

// EventKind classifies an audio-system disruption.
type EventKind int

const (
	// InterruptionBegan signals a transient takeover of the audio
	// output, e.g. an incoming call.
	InterruptionBegan EventKind = iota
	// InterruptionEnded signals the takeover finished.
	InterruptionEnded
	// RouteChanged signals the output route changed, e.g. headphones
	// unplugged.
	RouteChanged
	// GraphInvalidated signals the audio graph configuration can no
	// longer be trusted and must be rebuilt.
	GraphInvalidated
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case InterruptionBegan:
		return "interruption-began"
	case InterruptionEnded:
		return "interruption-ended"
	case RouteChanged:
		return "route-changed"
	case GraphInvalidated:
		return "graph-invalidated"
	default:
		return "unknown"
	}
}

// Event is one audio-system notification.
type Event struct {
	Kind EventKind
	// Resume reports, for InterruptionEnded, whether resuming playback
	// is appropriate.
	Resume bool
	// OutputStopped reports, for InterruptionEnded, that the output
	// was torn down during the interruption and needs a restart.
	OutputStopped bool
	// DeviceGone reports, for RouteChanged, that the previous output
	// device is no longer available.
	DeviceGone bool
}

// Monitor delivers audio-system events until closed.
type Monitor interface {
	Events() <-chan Event
	Close() error
}

// Verify implementations at compile time.
var (
	_ Monitor = (*NullMonitor)(nil)
	_ Monitor = (*Fake)(nil)
)

// NullMonitor never delivers events. Used on platforms without audio
// session notifications.
type NullMonitor struct {
	ch chan Event
}

// NewNullMonitor creates a monitor that stays silent.
func NewNullMonitor() *NullMonitor {
	return &NullMonitor{ch: make(chan Event)}
}

func (n *NullMonitor) Events() <-chan Event { return n.ch }

func (n *NullMonitor) Close() error {
	close(n.ch)
	return nil
}

// Fake is a test monitor driven by Emit.
type Fake struct {
	ch chan Event
}

// NewFake creates a test monitor.
func NewFake() *Fake {
	return &Fake{ch: make(chan Event, 16)}
}

func (f *Fake) Events() <-chan Event { return f.ch }

// Emit delivers one event to the listener.
func (f *Fake) Emit(e Event) { f.ch <- e }

func (f *Fake) Close() error {
	close(f.ch)
	return nil
}
