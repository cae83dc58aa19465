package lesson

import (
	"github.com/koscakluka/ema-lesson/core/playback"
	"github.com/koscakluka/ema-lesson/core/repair"
	"github.com/koscakluka/ema-lesson/core/sandbox"
	"github.com/koscakluka/ema-lesson/core/session"
)

type PlayerOption func(*Player)

// WithSandbox sets the fragment compiler. Use sandbox.WithDynamicCompile
// to model platforms that cannot compile visuals.
func WithSandbox(s *sandbox.Sandbox) PlayerOption {
	return func(p *Player) {
		p.sandbox = s
	}
}

func WithCapabilities(caps sandbox.Capabilities) PlayerOption {
	return func(p *Player) {
		p.capabilities = caps
	}
}

// WithAudioElement sets the platform audio capability. Without one the
// player narrates through a silent playback.HeadlessElement.
func WithAudioElement(element playback.AudioElement) PlayerOption {
	return func(p *Player) {
		p.audio = element
	}
}

// WithNarrationBaseURL sets the address root-relative audio URLs and image
// sources resolve against.
func WithNarrationBaseURL(baseURL string) PlayerOption {
	return func(p *Player) {
		p.baseURL = baseURL
	}
}

// WithReporter replaces the failure suppression layer. The same reporter
// is kept across retries.
func WithReporter(reporter sandbox.Reporter) PlayerOption {
	return func(p *Player) {
		p.reporter = reporter
	}
}

func WithRepairer(repairer repair.Repairer, maxAttempts int) PlayerOption {
	return func(p *Player) {
		p.repairer = repairer
		p.maxRepairs = maxAttempts
	}
}

type PlayOptions struct {
	onView     func(view session.View)
	onFrame    func(canvas sandbox.Canvas)
	onPlayback func(state playback.State)
	onNotice   func(notice Notice)
	onReady    func(ready bool)
}

type PlayOption func(*PlayOptions)

// WithViewCallback registers a callback for every change of the session
// view.
func WithViewCallback(callback func(view session.View)) PlayOption {
	return func(o *PlayOptions) {
		o.onView = callback
	}
}

// WithFrameCallback registers a callback receiving every successfully
// drawn visual.
func WithFrameCallback(callback func(canvas sandbox.Canvas)) PlayOption {
	return func(o *PlayOptions) {
		o.onFrame = callback
	}
}

func WithPlaybackCallback(callback func(state playback.State)) PlayOption {
	return func(o *PlayOptions) {
		o.onPlayback = callback
	}
}

// WithNoticeCallback registers a callback for user-facing notices. Visual
// failures only reach it after passing the suppression layer.
func WithNoticeCallback(callback func(notice Notice)) PlayOption {
	return func(o *PlayOptions) {
		o.onNotice = callback
	}
}

func WithReadyCallback(callback func(ready bool)) PlayOption {
	return func(o *PlayOptions) {
		o.onReady = callback
	}
}
