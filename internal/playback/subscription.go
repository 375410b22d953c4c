package playback

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	StateChanged  <-chan StateChange
	VerseChanged  <-chan VerseChange
	Unavailable   <-chan Unavailable
	RepeatChanged <-chan RepeatProgress
	Error         <-chan ErrorEvent
	Done          <-chan struct{}

	// Internal write channels
	stateCh   chan StateChange
	verseCh   chan VerseChange
	unavailCh chan Unavailable
	repeatCh  chan RepeatProgress
	errorCh   chan ErrorEvent
	doneCh    chan struct{}
}

// newSubscription creates a new subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:   make(chan StateChange, eventBufferSize),
		verseCh:   make(chan VerseChange, eventBufferSize),
		unavailCh: make(chan Unavailable, eventBufferSize),
		repeatCh:  make(chan RepeatProgress, eventBufferSize),
		errorCh:   make(chan ErrorEvent, eventBufferSize),
		doneCh:    make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.VerseChanged = s.verseCh
	s.Unavailable = s.unavailCh
	s.RepeatChanged = s.repeatCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// sendState sends a state change event (non-blocking).
func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
		// Drop if buffer full
	}
}

// sendVerse sends a verse change event (non-blocking).
func (s *Subscription) sendVerse(e VerseChange) {
	select {
	case s.verseCh <- e:
	default:
	}
}

// sendUnavailable sends an unavailable marker (non-blocking).
func (s *Subscription) sendUnavailable(e Unavailable) {
	select {
	case s.unavailCh <- e:
	default:
	}
}

// sendRepeat sends a repeat progress event (non-blocking).
func (s *Subscription) sendRepeat(e RepeatProgress) {
	select {
	case s.repeatCh <- e:
	default:
	}
}

// sendError sends an error event (non-blocking).
func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
