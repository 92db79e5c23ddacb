package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/lessoncast/readalong/timing"
)

// DefaultScrubDelay is how long a seek target must hold still before it is
// applied. Dragging a scrubber produces dozens of targets per second; only
// the settled one should trigger a cold lookup.
const DefaultScrubDelay = 120 * time.Millisecond

// Scrubber coalesces rapid seek requests so that only the final target of
// a burst reaches the transport. Safe for concurrent use.
type Scrubber struct {
	mu      sync.Mutex
	timer   *time.Timer
	delay   time.Duration
	apply   func(targetMs int64)
	pending int64
	armed   bool
}

// NewScrubber creates a scrubber that calls apply with the settled target.
// A non-positive delay falls back to DefaultScrubDelay.
func NewScrubber(delay time.Duration, apply func(targetMs int64)) *Scrubber {
	if delay <= 0 {
		delay = DefaultScrubDelay
	}
	return &Scrubber{delay: delay, apply: apply}
}

// Request records a seek target, replacing any pending one and restarting
// the settle timer. Negative targets are rejected before they can reach
// the transport.
func (s *Scrubber) Request(targetMs int64) error {
	if targetMs < 0 {
		return fmt.Errorf("scrub target %dms: %w", targetMs, timing.ErrInvalidPosition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = targetMs
	s.armed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
	return nil
}

// Flush applies any pending target immediately instead of waiting out the
// settle delay.
func (s *Scrubber) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	armed, target := s.armed, s.pending
	s.armed = false
	s.mu.Unlock()

	if armed {
		s.apply(target)
	}
}

// Cancel drops any pending target without applying it.
func (s *Scrubber) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armed = false
}

// Pending returns the waiting target, if any.
func (s *Scrubber) Pending() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.armed
}

func (s *Scrubber) fire() {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return
	}
	target := s.pending
	s.armed = false
	s.timer = nil
	s.mu.Unlock()

	s.apply(target)
}
