package playback

import (
	"reflect"
)

// audioElement routes calls to the configured element and caches its
// optional capabilities so the controller never type-asserts per call.
// An unconfigured facade drops every call.
type audioElement struct {
	base     AudioElement
	unlocker GestureUnlocker
	closer   Closer
}

func newAudioElement(element AudioElement) *audioElement {
	a := &audioElement{}
	a.Set(element)
	return a
}

// Set replaces the element. Nil and typed-nil elements leave the facade
// unconfigured.
func (a *audioElement) Set(element AudioElement) {
	a.base, a.unlocker, a.closer = nil, nil, nil

	if isNilElement(element) {
		return
	}
	a.base = element

	if unlocker, ok := element.(GestureUnlocker); ok {
		a.unlocker = unlocker
	}
	if closer, ok := element.(Closer); ok {
		a.closer = closer
	}
}

func (a *audioElement) isConfigured() bool {
	return a != nil && a.base != nil
}

func (a *audioElement) Load(src Source) error {
	if !a.isConfigured() {
		return ErrNoAudio
	}
	return a.base.Load(src)
}

func (a *audioElement) Play() error {
	if !a.isConfigured() {
		return ErrNoAudio
	}
	return a.base.Play()
}

func (a *audioElement) Pause() {
	if a.isConfigured() {
		a.base.Pause()
	}
}

func (a *audioElement) Seek(seconds float64) {
	if a.isConfigured() {
		a.base.Seek(seconds)
	}
}

func (a *audioElement) SetVolume(volume float64) {
	if a.isConfigured() {
		a.base.SetVolume(volume)
	}
}

func (a *audioElement) SetCallbacks(callbacks Callbacks) {
	if a.isConfigured() {
		a.base.SetCallbacks(callbacks)
	}
}

// Unlock forwards a user gesture when the element cares about it.
func (a *audioElement) Unlock() {
	if a.unlocker != nil {
		a.unlocker.Unlock()
	}
}

func (a *audioElement) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func isNilElement(element AudioElement) bool {
	if element == nil {
		return true
	}

	v := reflect.ValueOf(element)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
