// Package lesson plays a live lesson: it consumes the lesson event stream,
// keeps the session view, drives the visual host and narrates in step with
// the visuals.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/koscakluka/ema-lesson/core/events"
	"github.com/koscakluka/ema-lesson/core/playback"
	"github.com/koscakluka/ema-lesson/core/repair"
	"github.com/koscakluka/ema-lesson/core/sandbox"
	"github.com/koscakluka/ema-lesson/core/session"
	"github.com/koscakluka/ema-lesson/core/stream"
	"github.com/koscakluka/ema-lesson/core/suppress"
)

var (
	ErrAlreadyStarted = errors.New("player already started")
	ErrNotStarted     = errors.New("player not started")
	ErrClosed         = errors.New("player closed")
)

// Player wires the stream, session machine, visual host and narration
// controller of one lesson together.
//
// Callbacks registered through PlayOptions run on the player's goroutines
// and must not call back into the Player synchronously.
type Player struct {
	sandbox      *sandbox.Sandbox
	capabilities sandbox.Capabilities
	audio        playback.AudioElement
	baseURL      string
	reporter     sandbox.Reporter
	repairer     repair.Repairer
	maxRepairs   int

	signal     *repair.Signal
	host       *sandbox.Host
	controller *playback.Controller

	// mu serializes event handling with Retry and Close.
	mu        sync.Mutex
	source    stream.Source
	baseCtx   context.Context
	cancel    context.CancelFunc
	attemptID string
	machine   *session.Machine
	loop      *eventPlayer
	started   bool
	closed    bool

	// emitMu guards the callback state, which host and controller
	// callbacks reach while mu is held.
	emitMu  sync.Mutex
	emit    updateEmitter
	gesture bool

	renderContext *renderContextPump
}

func NewPlayer(opts ...PlayerOption) *Player {
	p := &Player{
		maxRepairs: sandbox.DefaultMaxRepairs,
		emit:       noopUpdateEmitter,
		signal:     repair.NewSignal(),
		machine:    session.NewMachine(""),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.sandbox == nil {
		p.sandbox = sandbox.New()
	}
	if p.reporter == nil {
		p.reporter = suppress.New()
	}
	if p.audio == nil {
		p.audio = playback.NewHeadlessElement()
	}
	caps := p.capabilities
	if caps.URLs == nil {
		caps.URLs = sandbox.NewBaseURLResolver(p.baseURL)
	}

	hostOpts := []sandbox.HostOption{
		sandbox.WithSandbox(p.sandbox),
		sandbox.WithCapabilities(caps),
		sandbox.WithReporter(p.reporter),
		sandbox.WithRepairPublisher(p.signal.Publisher()),
	}
	if p.repairer != nil {
		hostOpts = append(hostOpts, sandbox.WithRepairer(p.repairer, p.maxRepairs))
	}
	p.host = sandbox.NewHost(hostOpts...)
	p.controller = playback.NewController(
		playback.WithBaseURL(p.baseURL),
		playback.WithAudioElement(p.audio),
		playback.WithOnStateChange(p.onPlaybackChange),
	)
	p.renderContext = newRenderContextPump(p.host)

	p.host.SetCallbacks(sandbox.HostCallbacks{
		OnReadyChange: func(ready bool) {
			p.controller.SetVisualsReady(ready)
			p.currentEmitter()(readinessChanged{ready: ready})
		},
		OnFrame: func(canvas sandbox.Canvas) {
			p.currentEmitter()(frameRendered{canvas: canvas})
		},
		OnFailure: func(failure *sandbox.Failure) {
			p.currentEmitter()(noticeRaised{notice: visualNotice(failure)})
		},
	})

	return p
}

// Start begins playing src. Retry reopens the same source, so src must be
// safe to iterate more than once.
func (p *Player) Start(ctx context.Context, src stream.Source, opts ...PlayOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return ErrClosed
	case p.started:
		return ErrAlreadyStarted
	case src == nil:
		return fmt.Errorf("lesson source is nil")
	}

	playOptions := PlayOptions{}
	for _, opt := range opts {
		opt(&playOptions)
	}
	p.emitMu.Lock()
	p.emit = newCallbackUpdateEmitter(playOptions)
	p.emitMu.Unlock()
	p.source = src
	p.started = true
	p.baseCtx, p.cancel = context.WithCancel(ctx)

	goWorker(p.baseCtx, "repair watch", func(ctx context.Context) error {
		p.controller.Watch(ctx, p.signal.Observer())
		return nil
	})
	goWorker(p.baseCtx, "render context", p.renderContext.Run)

	p.startAttemptLocked()
	return nil
}

func (p *Player) startAttemptLocked() {
	p.attemptID = uuid.NewString()
	p.machine = session.NewMachine(p.attemptID)
	p.loop = newEventPlayer(p.attemptID)
	logger.InfoContext(p.baseCtx, "starting lesson attempt", "attempt_id", p.attemptID)

	p.loop.StartLoop(p.baseCtx, p.source, eventPlayerCallbacks{
		onEvent: p.handleEvent,
		onEnd:   p.handleEnd,
	})
}

// Retry starts a fresh attempt: a new event log, a reset visual host and
// narration controller, and a reopened stream. Failure suppression is
// kept across attempts.
func (p *Player) Retry() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return ErrClosed
	case !p.started:
		return ErrNotStarted
	}

	p.loop.Stop()
	p.host.Reset()
	p.controller.Reset()
	p.renderContext.Reset()
	p.emitMu.Lock()
	p.gesture = false
	p.emitMu.Unlock()

	p.startAttemptLocked()
	p.currentEmitter()(viewUpdated{view: p.machine.View()})
	return nil
}

// Gesture forwards a user gesture to the narration: it starts playback
// after an autoplay rejection and replays ended narration.
func (p *Player) Gesture() {
	p.controller.Gesture()
}

func (p *Player) Replay() {
	p.controller.Replay()
}

func (p *Player) SetVolume(volume float64) {
	p.controller.SetVolume(volume)
}

func (p *Player) Volume() float64 {
	return p.controller.Volume()
}

func (p *Player) SetShowCaptions(show bool) {
	p.renderContext.Update(func(rc *sandbox.RenderContext) {
		rc.ShowCaptions = show
	})
}

// View returns a deep copy of the current session view.
func (p *Player) View() session.View {
	p.mu.Lock()
	view := p.machine.View()
	p.mu.Unlock()

	var out session.View
	if err := copier.CopyWithOption(&out, &view, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy session view", "error", err)
		return view
	}
	// copier skips unexported fields, which includes the event kind.
	if view.LatestRender != nil {
		out.LatestRender.Base = view.LatestRender.Base
	}
	if view.LatestSpeak != nil {
		out.LatestSpeak.Base = view.LatestSpeak.Base
	}
	return out
}

// Events returns the event log of the current attempt.
func (p *Player) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Log().Events()
}

func (p *Player) AttemptID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attemptID
}

func (p *Player) Playback() playback.State {
	return p.controller.State()
}

func (p *Player) Visual() sandbox.HostStatus {
	return p.host.Status()
}

// Notes renders the Markdown notes of the latest render as HTML.
func (p *Player) Notes() (string, error) {
	view := p.View()
	if view.LatestRender == nil {
		return "", nil
	}
	return RenderNotes(view.LatestRender.Markdown)
}

// Wait blocks until the current attempt's stream is exhausted.
func (p *Player) Wait() {
	p.mu.Lock()
	loop := p.loop
	p.mu.Unlock()
	loop.AwaitDone()
}

// Close stops the stream, narration and any in-flight visual work.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	p.loop.Stop()
	if p.cancel != nil {
		p.cancel()
	}
	p.host.Close()
	return p.controller.Close()
}

func (p *Player) currentEmitter() updateEmitter {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	return p.emit
}

func (p *Player) handleEvent(ctx context.Context, attemptID string, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || attemptID != p.attemptID {
		return
	}

	before := p.machine.View()
	after := p.machine.Apply(event)
	p.reactLocked(ctx, before, after, event)
}

func (p *Player) handleEnd(ctx context.Context, attemptID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || attemptID != p.attemptID {
		return
	}

	before := p.machine.View()
	var after session.View
	if err != nil {
		logger.WarnContext(ctx, "lesson stream failed", "attempt_id", attemptID, "error", err)
		after = p.machine.Interrupt(transportFailureMessage)
	} else {
		after = p.machine.EndOfStream()
	}
	p.reactLocked(ctx, before, after, nil)
}

// reactLocked pushes a view change out to the host, controller and
// callbacks.
func (p *Player) reactLocked(ctx context.Context, before, after session.View, event events.Event) {
	emit := p.currentEmitter()

	if after.State == session.StateError {
		if before.State != session.StateError {
			p.host.Halt()
			p.controller.Reset()
			emit(noticeRaised{notice: lessonNotice()})
			emit(viewUpdated{view: after})
		}
		return
	}

	if after.RenderSeq != before.RenderSeq && after.LatestRender != nil {
		p.host.SetFragment(ctx, sandbox.Fragment{
			Code:     after.LatestRender.Code,
			Language: after.LatestRender.Language,
		})
	}

	if meta, ok := event.(events.Meta); ok {
		if meta.Repairing != nil {
			p.host.SetUpstreamRepairing(*meta.Repairing)
		}
		if meta.FixedCode != "" {
			p.host.SetPatch(ctx, meta.FixedCode)
		}
		if meta.Slide != nil || meta.Timeline != nil {
			p.renderContext.Update(func(rc *sandbox.RenderContext) {
				if after.Slide != nil {
					rc.Slide = *after.Slide
				}
				rc.Timeline = after.Timeline
			})
		}
	}

	if after.SpeakSeq != before.SpeakSeq && after.LatestSpeak != nil {
		speak := *after.LatestSpeak
		if err := p.controller.SetNarration(speak); err != nil {
			logger.WarnContext(ctx, "invalid narration", "error", err)
		}
		words, spoken := p.controller.Words(), p.controller.SpokenText()
		p.renderContext.Update(func(rc *sandbox.RenderContext) {
			rc.Words = words
			rc.SpokenText = spoken
		})
	}

	emit(viewUpdated{view: after})
}

func (p *Player) onPlaybackChange(state playback.State) {
	spoken := p.controller.SpokenText()
	p.renderContext.Update(func(rc *sandbox.RenderContext) {
		rc.TimeSeconds = state.TimeSeconds
		rc.IsPlaying = state.Playing
		rc.SpokenText = spoken
	})

	p.emitMu.Lock()
	emit := p.emit
	notify := state.NeedsUserGesture && !p.gesture
	p.gesture = state.NeedsUserGesture
	p.emitMu.Unlock()

	emit(playbackUpdated{state: state})
	if notify {
		emit(noticeRaised{notice: gestureNotice()})
	}
}
