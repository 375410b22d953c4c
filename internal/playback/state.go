// internal/playback/state.go
package playback

// State represents the engine state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateAwaitingRepeat
	StateAwaitingNextVerse
	StateRangeComplete
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateAwaitingRepeat:
		return "AwaitingRepeat"
	case StateAwaitingNextVerse:
		return "AwaitingNextVerse"
	case StateRangeComplete:
		return "RangeComplete"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsActive returns true while a session is in progress (anything between
// Play and the session's end).
func (s State) IsActive() bool {
	switch s {
	case StateIdle, StateError:
		return false
	default:
		return true
	}
}
