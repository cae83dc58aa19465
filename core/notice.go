package lesson

import "github.com/koscakluka/ema-lesson/core/sandbox"

type NoticeKind string

const (
	// NoticeLesson is raised when the lesson stream reports an error or the
	// transport fails. Only Retry recovers from it.
	NoticeLesson NoticeKind = "lesson"
	// NoticeVisual is raised when a visual fails to compile or draw.
	NoticeVisual NoticeKind = "visual"
	// NoticeUnsupported is raised when visuals cannot run on this platform.
	NoticeUnsupported NoticeKind = "unsupported"
	// NoticeGesture is raised when narration needs the user to press play.
	NoticeGesture NoticeKind = "gesture"
)

// Notice is a user-facing message. Messages never carry technical detail.
type Notice struct {
	Kind      NoticeKind
	Message   string
	Retryable bool
}

const (
	genericFailureMessage = "We couldn't load this part of the lesson. Check your connection and try again."
	unsupportedMessage    = "Interactive visuals aren't available here."
	gestureMessage        = "Press play to start the narration."
	// transportFailureMessage latches into the session view when the
	// stream breaks.
	transportFailureMessage = "The lesson stream was interrupted. Check your connection and try again."
)

func lessonNotice() Notice {
	return Notice{Kind: NoticeLesson, Message: genericFailureMessage, Retryable: true}
}

func gestureNotice() Notice {
	return Notice{Kind: NoticeGesture, Message: gestureMessage}
}

func visualNotice(failure *sandbox.Failure) Notice {
	if failure.Stage == sandbox.StageUnsupported {
		return Notice{Kind: NoticeUnsupported, Message: unsupportedMessage}
	}
	return Notice{Kind: NoticeVisual, Message: genericFailureMessage, Retryable: true}
}
