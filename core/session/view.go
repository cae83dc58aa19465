package session

import "github.com/koscakluka/ema-lesson/core/events"

type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// View is the presentation state derived from an event log. RenderSeq and
// SpeakSeq are the log positions of LatestRender and LatestSpeak, or -1.
type View struct {
	State        State
	Loading      bool
	LatestRender *events.Render
	LatestSpeak  *events.Speak
	ErrorMessage string
	Slide        *events.Slide
	Timeline     []events.Cue
	FinalText    string
	SessionID    string

	RenderSeq int
	SpeakSeq  int
}

func initialView() View {
	return View{State: StateLoading, Loading: true, RenderSeq: -1, SpeakSeq: -1}
}

// DeriveView computes the view of log from scratch. It is pure and returns
// the same View for the same log prefix.
func DeriveView(log []events.Event) View {
	view := initialView()
	for seq, event := range log {
		view = apply(view, seq, event)
	}
	return view
}

// apply folds one event into view. Once an error is latched nothing but
// the log changes for the rest of the attempt.
func apply(view View, seq int, event events.Event) View {
	if view.State == StateError {
		return view
	}

	switch typed := event.(type) {
	case events.Render:
		if typed.HasCode() {
			render := typed
			view.LatestRender = &render
			view.RenderSeq = seq
			view.State = StateReady
		}
	case events.Speak:
		if typed.HasContent() {
			speak := typed
			view.LatestSpeak = &speak
			view.SpeakSeq = seq
		}
	case events.Meta:
		if typed.Slide != nil {
			slide := *typed.Slide
			view.Slide = &slide
		}
		if typed.Timeline != nil {
			view.Timeline = typed.Timeline
		}
	case events.Session:
		view.SessionID = typed.ID
	case events.Final:
		view.FinalText = typed.Text
	case events.Error:
		view.State = StateError
		view.ErrorMessage = typed.Message
	}

	if events.IsTerminal(event.Kind()) {
		view.Loading = false
	}
	return view
}
