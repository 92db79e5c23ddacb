// Package playback drives word and sentence highlight synchronization
// during narrated audio playback: a controller that turns a stream of
// playback positions into index change events, a debouncer for seek
// storms, and a simulated transport clock for hosts without a real
// audio pipeline.
package playback

// Status represents the synchronization session state.
type Status int

const (
	// StatusIdle indicates no timing dataset is attached.
	StatusIdle Status = iota
	// StatusReady indicates a dataset is attached but no position has
	// been observed yet.
	StatusReady
	// StatusTracking indicates positions are resolving incrementally.
	StatusTracking
	// StatusSeeking indicates a position discontinuity is being resolved
	// with a cold lookup.
	StatusSeeking
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusReady:
		return "ready"
	case StatusTracking:
		return "tracking"
	case StatusSeeking:
		return "seeking"
	default:
		return "unknown"
	}
}

// Session is the per-session synchronization state a renderer consumes:
// the currently active indices and the last observed position. Indices are
// -1 when nothing is active; LastPositionMs is -1 until the first update.
type Session struct {
	WordIndex      int
	SentenceIndex  int
	LastPositionMs int64
}

func newSession() Session {
	return Session{WordIndex: -1, SentenceIndex: -1, LastPositionMs: -1}
}

// StateMachine enforces valid status transitions for one session.
type StateMachine struct {
	current     Status
	transitions map[Status][]Status
}

// NewStateMachine creates a state machine in StatusIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StatusIdle,
		transitions: map[Status][]Status{
			StatusIdle:     {StatusReady},
			StatusReady:    {StatusTracking, StatusReady, StatusIdle},
			StatusTracking: {StatusSeeking, StatusReady, StatusIdle},
			StatusSeeking:  {StatusTracking, StatusReady, StatusIdle},
		},
	}
}

// Current returns the current status.
func (m *StateMachine) Current() Status {
	return m.current
}

// CanTransition reports whether a transition to the given status is valid.
func (m *StateMachine) CanTransition(to Status) bool {
	for _, valid := range m.transitions[m.current] {
		if valid == to {
			return true
		}
	}
	return false
}

// Transition attempts to move to the given status and reports whether the
// transition was valid.
func (m *StateMachine) Transition(to Status) bool {
	if !m.CanTransition(to) {
		return false
	}
	m.current = to
	return true
}

// Reset returns the machine to StatusIdle from any state.
func (m *StateMachine) Reset() {
	m.current = StatusIdle
}
