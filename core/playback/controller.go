package playback

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/koscakluka/ema-lesson/core/events"
	"github.com/koscakluka/ema-lesson/core/repair"
)

// State is the narration state owned by the Controller.
type State struct {
	VisualsReady     bool
	AudioReady       bool
	Playing          bool
	Ended            bool
	NeedsUserGesture bool
	Repairing        bool
	TimeSeconds      float64
	URL              string
	PlayAttempts     int
}

// Narration is what the controller should play next.
type Narration struct {
	URL      string
	Duration float64
	Words    []events.WordTimestamp
}

type ControllerOption func(*Controller)

// WithBaseURL sets the address root-relative narration URLs resolve
// against.
func WithBaseURL(baseURL string) ControllerOption {
	return func(c *Controller) {
		c.baseURL = baseURL
	}
}

func WithAudioElement(element AudioElement) ControllerOption {
	return func(c *Controller) {
		c.audio.Set(element)
	}
}

func WithOnStateChange(fn func(State)) ControllerOption {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller gates narration on visual readiness and the repairing signal.
// The first play of a narration happens at most once per Load; later plays
// only come from an explicit Gesture, Replay or the end of a repair.
type Controller struct {
	mu sync.Mutex

	audio    *audioElement
	baseURL  string
	onChange func(State)

	state     State
	volume    float64
	narration *Narration
	loadedURL string
	started   bool
	// resume is set when a repair paused active playback. It is consumed
	// once the repair has ended and the visuals are ready again.
	resume bool
	// generation invalidates element callbacks from previous loads.
	generation uint64
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{audio: newAudioElement(nil), volume: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// update runs fn under the lock and reports the resulting state change
// after releasing it.
func (c *Controller) update(fn func()) {
	c.mu.Lock()
	before := c.state
	fn()
	after := c.state
	onChange := c.onChange
	c.mu.Unlock()

	if before != after && onChange != nil {
		onChange(after)
	}
}

// SetNarration switches to the narration in speak. Re-sending the same
// narration is a no-op.
func (c *Controller) SetNarration(speak events.Speak) error {
	resolved, err := ResolveAudioURL(c.baseURL, speak.AudioURL)
	if err != nil {
		return err
	}

	c.update(func() {
		if c.narration != nil && c.narration.URL == resolved {
			c.narration.Words = speak.Words
			return
		}
		c.unloadLocked()
		c.narration = &Narration{URL: resolved, Duration: speak.Duration(), Words: speak.Words}
		c.state.URL = resolved
		c.evaluateLocked()
	})
	return nil
}

func (c *Controller) SetVisualsReady(ready bool) {
	c.update(func() {
		c.state.VisualsReady = ready
		c.evaluateLocked()
	})
}

func (c *Controller) setRepairing(repairing bool) {
	c.update(func() {
		if c.state.Repairing == repairing {
			return
		}
		c.state.Repairing = repairing
		if repairing {
			if c.state.Playing {
				c.resume = true
				c.audio.Pause()
				c.state.Playing = false
			}
			return
		}
		c.evaluateLocked()
	})
}

// Watch follows the repairing signal until ctx is done.
func (c *Controller) Watch(ctx context.Context, observer repair.Observer) {
	updates, cancel := observer.Subscribe()
	defer cancel()

	c.setRepairing(observer.Repairing())
	for {
		select {
		case <-ctx.Done():
			return
		case repairing := <-updates:
			c.setRepairing(repairing)
		}
	}
}

// Gesture is the user-initiated retry after the platform rejected
// playback. After the narration ended it behaves like Replay.
func (c *Controller) Gesture() {
	c.update(func() {
		c.audio.Unlock()
		switch {
		case c.state.NeedsUserGesture:
			c.state.NeedsUserGesture = false
			if c.state.Repairing || !c.state.VisualsReady {
				c.started = false
				return
			}
			c.playLocked()
		case c.state.Ended:
			c.replayLocked()
		}
	})
}

// Replay restarts an ended narration from zero.
func (c *Controller) Replay() {
	c.update(func() {
		if c.state.Ended {
			c.replayLocked()
		}
	})
}

func (c *Controller) replayLocked() {
	c.state.Ended = false
	c.state.TimeSeconds = 0
	c.audio.Seek(0)
	if c.state.Repairing || !c.state.VisualsReady {
		c.started = false
		return
	}
	c.playLocked()
}

func (c *Controller) SetVolume(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = math.Min(math.Max(volume, 0), 1)
	c.audio.SetVolume(c.volume)
}

func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Reset returns the controller to its initial state for a new attempt.
// The repairing flag is kept since it mirrors the signal.
func (c *Controller) Reset() {
	c.update(func() {
		c.unloadLocked()
		c.narration = nil
		c.state = State{Repairing: c.state.Repairing}
	})
}

// Close stops playback and releases the element.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unloadLocked()
	return c.audio.Close()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SpokenText returns the narration words spoken by the current position.
func (c *Controller) SpokenText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.narration == nil {
		return ""
	}
	return events.SpokenText(c.narration.Words, c.state.TimeSeconds)
}

// Words returns the word timestamps of the current narration.
func (c *Controller) Words() []events.WordTimestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.narration == nil {
		return nil
	}
	return append([]events.WordTimestamp(nil), c.narration.Words...)
}

func (c *Controller) unloadLocked() {
	if c.state.Playing {
		c.audio.Pause()
	}
	c.generation++
	c.loadedURL = ""
	c.started = false
	c.resume = false
	c.state.AudioReady = false
	c.state.Playing = false
	c.state.Ended = false
	c.state.NeedsUserGesture = false
	c.state.TimeSeconds = 0
	c.state.URL = ""
	c.state.PlayAttempts = 0
}

// evaluateLocked starts narration once every gate is open.
func (c *Controller) evaluateLocked() {
	switch {
	case c.state.Repairing:
		return
	case !c.state.VisualsReady:
		return
	case c.resume:
		c.resume = false
		c.playLocked()
		return
	case c.narration == nil || c.narration.URL == "":
		return
	case c.started || c.state.NeedsUserGesture || c.state.Ended:
		return
	}

	if c.loadedURL != c.narration.URL {
		c.generation++
		c.audio.SetCallbacks(c.callbacksFor(c.generation))
		if err := c.audio.Load(Source{URL: c.narration.URL, Duration: c.narration.Duration}); err != nil {
			logger.Warn("failed to load narration", "url", c.narration.URL, "error", err)
			return
		}
		c.loadedURL = c.narration.URL
	}
	c.started = true
	c.playLocked()
}

func (c *Controller) playLocked() {
	c.state.PlayAttempts++
	err := c.audio.Play()
	switch {
	case err == nil:
		c.state.Playing = true
	case errors.Is(err, ErrPlayRejected):
		c.state.Playing = false
		c.state.NeedsUserGesture = true
	default:
		c.state.Playing = false
		logger.Warn("failed to start narration", "url", c.loadedURL, "error", err)
	}
}

func (c *Controller) callbacksFor(generation uint64) Callbacks {
	current := func() bool { return c.generation == generation }

	return Callbacks{
		OnCanPlay: func() {
			c.update(func() {
				if current() {
					c.state.AudioReady = true
				}
			})
		},
		OnTimeUpdate: func(seconds float64) {
			c.update(func() {
				if current() && c.state.Playing {
					c.state.TimeSeconds = seconds
				}
			})
		},
		OnEnded: func() {
			c.update(func() {
				if current() {
					c.state.Playing = false
					c.state.Ended = true
					c.state.TimeSeconds = 0
				}
			})
		},
		OnPaused: func() {
			c.update(func() {
				if current() {
					c.state.Playing = false
				}
			})
		},
		OnPlayRejected: func(err error) {
			c.update(func() {
				if current() {
					logger.Debug("narration rejected", "error", err)
					c.state.Playing = false
					c.state.NeedsUserGesture = true
				}
			})
		},
	}
}
