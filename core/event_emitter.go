package lesson

import (
	"github.com/koscakluka/ema-lesson/core/playback"
	"github.com/koscakluka/ema-lesson/core/sandbox"
	"github.com/koscakluka/ema-lesson/core/session"
)

// update is anything the player reports to its host application.
type update interface{ isUpdate() }

type viewUpdated struct{ view session.View }
type frameRendered struct{ canvas sandbox.Canvas }
type playbackUpdated struct{ state playback.State }
type noticeRaised struct{ notice Notice }
type readinessChanged struct{ ready bool }

func (viewUpdated) isUpdate()      {}
func (frameRendered) isUpdate()    {}
func (playbackUpdated) isUpdate()  {}
func (noticeRaised) isUpdate()     {}
func (readinessChanged) isUpdate() {}

type updateEmitter func(update)

func noopUpdateEmitter(update) {}

func newCallbackUpdateEmitter(opts PlayOptions) updateEmitter {
	return func(u update) {
		switch typed := u.(type) {
		case viewUpdated:
			if opts.onView != nil {
				opts.onView(typed.view)
			}
		case frameRendered:
			if opts.onFrame != nil {
				opts.onFrame(typed.canvas)
			}
		case playbackUpdated:
			if opts.onPlayback != nil {
				opts.onPlayback(typed.state)
			}
		case noticeRaised:
			if opts.onNotice != nil {
				opts.onNotice(typed.notice)
			}
		case readinessChanged:
			if opts.onReady != nil {
				opts.onReady(typed.ready)
			}
		}
	}
}
