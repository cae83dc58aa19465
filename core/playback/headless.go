package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/koscakluka/ema-lesson/internal/clock"
)

const DefaultTick = 250 * time.Millisecond

// HeadlessElement is an AudioElement that produces no sound. It advances
// its position from a clock, which makes it useful for terminals, servers
// and tests.
type HeadlessElement struct {
	mu sync.Mutex

	clock          clock.Clock
	tick           time.Duration
	requireGesture bool
	unlocked       bool

	callbacks Callbacks
	src       Source
	loaded    bool
	position  float64
	volume    float64
	playing   bool
	stop      chan struct{}
}

type HeadlessOption func(*HeadlessElement)

func WithClock(c clock.Clock) HeadlessOption {
	return func(e *HeadlessElement) {
		e.clock = c
	}
}

func WithTick(tick time.Duration) HeadlessOption {
	return func(e *HeadlessElement) {
		e.tick = tick
	}
}

// WithAutoplayBlocked makes Play fail with ErrPlayRejected until Unlock is
// called.
func WithAutoplayBlocked() HeadlessOption {
	return func(e *HeadlessElement) {
		e.requireGesture = true
	}
}

func NewHeadlessElement(opts ...HeadlessOption) *HeadlessElement {
	e := &HeadlessElement{
		clock:  clock.Real(),
		tick:   DefaultTick,
		volume: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *HeadlessElement) SetCallbacks(callbacks Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = callbacks
}

func (e *HeadlessElement) Load(src Source) error {
	if src.URL == "" {
		return errors.New("empty narration url")
	}

	e.mu.Lock()
	e.stopLocked()
	e.src = src
	e.loaded = true
	e.position = 0
	onCanPlay := e.callbacks.OnCanPlay
	e.mu.Unlock()

	if onCanPlay != nil {
		go onCanPlay()
	}
	return nil
}

func (e *HeadlessElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return errors.New("no narration loaded")
	}
	if e.requireGesture && !e.unlocked {
		return ErrPlayRejected
	}
	if e.playing {
		return nil
	}

	e.playing = true
	e.stop = make(chan struct{})
	go e.run(e.stop, e.clock.NewTicker(e.tick), e.clock.Now())
	return nil
}

func (e *HeadlessElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *HeadlessElement) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = max(seconds, 0)
}

func (e *HeadlessElement) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
}

func (e *HeadlessElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *HeadlessElement) Unlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unlocked = true
}

func (e *HeadlessElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *HeadlessElement) Close() error {
	e.Pause()
	return nil
}

// stopLocked signals the run loop to stop. It does not wait for it: the
// loop may be delivering a callback that needs the caller's locks.
func (e *HeadlessElement) stopLocked() {
	if !e.playing {
		return
	}
	e.playing = false
	close(e.stop)
}

func (e *HeadlessElement) run(stop chan struct{}, ticker *clock.Ticker, last time.Time) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		now := e.clock.Now()
		e.mu.Lock()
		select {
		case <-stop:
			e.mu.Unlock()
			return
		default:
		}
		e.position += now.Sub(last).Seconds()
		last = now

		ended := e.src.Duration > 0 && e.position >= e.src.Duration
		position := e.position
		callbacks := e.callbacks
		if ended {
			e.playing = false
			e.position = 0
		}
		e.mu.Unlock()

		if ended {
			if callbacks.OnEnded != nil {
				callbacks.OnEnded()
			}
			return
		}
		if callbacks.OnTimeUpdate != nil {
			callbacks.OnTimeUpdate(position)
		}
	}
}
