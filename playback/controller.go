package playback

import (
	"github.com/charmbracelet/log"

	"github.com/lessoncast/readalong/timing"
)

// DefaultSeekThresholdMs is the forward position jump beyond which an
// update is treated as a seek rather than normal playback progress. Two
// seconds of media cannot elapse between honest frame updates even at the
// highest supported playback rate.
const DefaultSeekThresholdMs = 2000

// Change is emitted when the active word or sentence index changes. Seek
// marks changes produced by a position discontinuity rather than steady
// playback.
type Change struct {
	WordIndex     int
	SentenceIndex int
	PositionMs    int64
	Seek          bool
}

// ControllerConfig configures a synchronization controller.
type ControllerConfig struct {
	// SeekThresholdMs classifies forward jumps larger than this as seeks.
	// Backward jumps of any size are always seeks.
	SeekThresholdMs int64
	Logger          *log.Logger
}

// DefaultControllerConfig returns the standard configuration.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		SeekThresholdMs: DefaultSeekThresholdMs,
	}
}

// Controller turns a stream of playback positions into highlight index
// change events. It owns one session: attach a dataset, feed it positions
// (typically at frame rate), and consume changes either from OnPosition's
// return value or through subscribed callbacks.
//
// A controller is confined to a single goroutine, the same way an Index
// is. Steady-state position updates perform no allocations.
type Controller struct {
	machine *StateMachine
	index   *timing.Index
	session Session

	seekThresholdMs int64
	logger          *log.Logger
	subscribers     []func(Change)
}

// NewController creates a detached controller. Zero-value config fields
// fall back to defaults.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.SeekThresholdMs <= 0 {
		cfg.SeekThresholdMs = DefaultSeekThresholdMs
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Controller{
		machine:         NewStateMachine(),
		session:         newSession(),
		seekThresholdMs: cfg.SeekThresholdMs,
		logger:          cfg.Logger,
	}
}

// Attach binds a dataset to the controller, replacing any previous one.
// The session resets: indices clear to -1 and the next position update is
// classified as the first, never as a seek.
func (c *Controller) Attach(ds *timing.Dataset) {
	if c.machine.Current() != StatusIdle {
		c.machine.Reset()
	}
	c.index = timing.NewIndex(ds)
	c.session = newSession()
	c.machine.Transition(StatusReady)
	c.logger.Debug("attached timing dataset",
		"content", ds.ContentID,
		"words", ds.WordCount(),
		"sentences", ds.SentenceCount())
}

// Detach releases the current dataset. Subsequent position updates are
// no-ops until the next Attach.
func (c *Controller) Detach() {
	c.index = nil
	c.session = newSession()
	c.machine.Reset()
	c.logger.Debug("detached timing dataset")
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	return c.machine.Current()
}

// Session returns a copy of the current session state.
func (c *Controller) Session() Session {
	return c.session
}

// Dataset returns the attached dataset, or nil when idle.
func (c *Controller) Dataset() *timing.Dataset {
	if c.index == nil {
		return nil
	}
	return c.index.Dataset()
}

// Subscribe registers a callback invoked synchronously for every change,
// on the goroutine that called OnPosition.
func (c *Controller) Subscribe(fn func(Change)) {
	c.subscribers = append(c.subscribers, fn)
}

// OnPosition resolves the active indices for a playback position and
// reports whether they changed. Detached controllers ignore updates;
// negative positions are logged and ignored. A backward jump, or a
// forward jump past the seek threshold, resets lookup locality before
// resolving so stale hints cannot serve the new region.
func (c *Controller) OnPosition(positionMs int64) (Change, bool) {
	status := c.machine.Current()
	if status == StatusIdle {
		return Change{}, false
	}
	if positionMs < 0 {
		c.logger.Warn("ignoring invalid playback position", "positionMs", positionMs)
		return Change{}, false
	}

	seek := false
	if c.session.LastPositionMs >= 0 {
		delta := positionMs - c.session.LastPositionMs
		if delta < 0 || delta > c.seekThresholdMs {
			seek = true
			c.machine.Transition(StatusSeeking)
			c.index.ResetLocality()
			c.logger.Debug("seek detected",
				"fromMs", c.session.LastPositionMs,
				"toMs", positionMs)
		}
	}

	pair := c.index.ActiveIndices(positionMs)
	c.session.LastPositionMs = positionMs
	if s := c.machine.Current(); s == StatusReady || s == StatusSeeking {
		c.machine.Transition(StatusTracking)
	}

	if pair.Word == c.session.WordIndex && pair.Sentence == c.session.SentenceIndex {
		return Change{}, false
	}
	c.session.WordIndex = pair.Word
	c.session.SentenceIndex = pair.Sentence

	change := Change{
		WordIndex:     pair.Word,
		SentenceIndex: pair.Sentence,
		PositionMs:    positionMs,
		Seek:          seek,
	}
	for _, fn := range c.subscribers {
		fn(change)
	}
	return change, true
}
