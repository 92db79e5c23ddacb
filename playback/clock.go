package playback

import (
	"sync"
	"time"
)

// Rate limits for the simulated transport.
const (
	MinRate = 0.5
	MaxRate = 3.0
)

// Clock is a simulated playback transport: it advances a media position
// against the wall clock, scaled by the playback rate, without producing
// audio. Hosts that wire a real audio pipeline feed the controller their
// own positions instead; everything downstream only ever sees positions.
//
// Safe for concurrent use.
type Clock struct {
	mu         sync.Mutex
	playing    bool
	rate       float64
	baseMs     int64     // media position accumulated up to the anchor
	anchor     time.Time // wall time the current play segment started
	durationMs int64
}

// NewClock creates a paused clock at position zero for media of the given
// duration.
func NewClock(durationMs int64) *Clock {
	return &Clock{rate: 1.0, durationMs: durationMs}
}

// Play starts or resumes the clock.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.anchor = time.Now()
	c.playing = true
}

// Pause freezes the clock at its current position.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.baseMs = c.positionLocked()
	c.playing = false
}

// Toggle flips between playing and paused, returning the new playing state.
func (c *Clock) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.baseMs = c.positionLocked()
		c.playing = false
	} else {
		c.anchor = time.Now()
		c.playing = true
	}
	return c.playing
}

// Playing reports whether the clock is advancing.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SeekTo jumps to the given media position, clamped to the media bounds,
// and returns the position actually set.
func (c *Clock) SeekTo(positionMs int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseMs = clamp(positionMs, 0, c.durationMs)
	c.anchor = time.Now()
	return c.baseMs
}

// SeekBy jumps relative to the current position and returns the new one.
func (c *Clock) SeekBy(deltaMs int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseMs = clamp(c.positionLocked()+deltaMs, 0, c.durationMs)
	c.anchor = time.Now()
	return c.baseMs
}

// SetRate changes the playback rate, clamped to [MinRate, MaxRate], and
// returns the rate actually set. The position accumulated so far is kept.
func (c *Clock) SetRate(rate float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate < MinRate {
		rate = MinRate
	}
	if rate > MaxRate {
		rate = MaxRate
	}
	// Fold elapsed time in at the old rate before switching.
	c.baseMs = c.positionLocked()
	c.anchor = time.Now()
	c.rate = rate
	return c.rate
}

// Rate returns the current playback rate.
func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// PositionMs returns the current media position in milliseconds.
func (c *Clock) PositionMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// Position returns the current media position as a duration.
func (c *Clock) Position() time.Duration {
	return time.Duration(c.PositionMs()) * time.Millisecond
}

// DurationMs returns the media duration in milliseconds.
func (c *Clock) DurationMs() int64 {
	return c.durationMs
}

// Finished reports whether the position has reached the end of the media.
func (c *Clock) Finished() bool {
	return c.PositionMs() >= c.durationMs
}

func (c *Clock) positionLocked() int64 {
	pos := c.baseMs
	if c.playing {
		elapsed := time.Since(c.anchor)
		pos += int64(float64(elapsed.Milliseconds()) * c.rate)
	}
	return clamp(pos, 0, c.durationMs)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
