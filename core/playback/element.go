// Package playback owns narration audio and keeps it in step with the
// visual host: audio only starts once visuals are ready and pauses while a
// repair is in progress.
package playback

import "errors"

// ErrPlayRejected is returned (or passed to OnPlayRejected) when the
// platform refuses to start playback without a user gesture.
var ErrPlayRejected = errors.New("playback requires a user gesture")

var ErrNoAudio = errors.New("no audio element configured")

// Source is a narration resource.
type Source struct {
	URL string
	// Duration is the declared length in seconds, 0 when unknown.
	Duration float64
}

// Callbacks are invoked by an AudioElement. They must never be invoked
// synchronously from inside one of the element's own methods.
type Callbacks struct {
	OnCanPlay    func()
	OnTimeUpdate func(seconds float64)
	OnEnded      func()
	// OnPaused reports pauses the platform made on its own, not ones
	// requested through Pause.
	OnPaused       func()
	OnPlayRejected func(err error)
}

// AudioElement is the platform's media capability.
type AudioElement interface {
	Load(src Source) error
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64)
	SetCallbacks(callbacks Callbacks)
}

// GestureUnlocker is implemented by elements that need to be told a user
// gesture happened before Play can succeed.
type GestureUnlocker interface {
	Unlock()
}

// Closer is implemented by elements holding resources beyond playback.
type Closer interface {
	Close() error
}
