package events

type Kind string

// Event is one record of the lesson stream. Events are immutable values;
// arrival metadata lives in the session log, not on the event.
type Event interface {
	Kind() Kind
}

type Base struct {
	kind Kind
}

func NewBase(kind Kind) Base {
	return Base{kind: kind}
}

func (b Base) Kind() Kind {
	return b.kind
}

// IsTerminal reports whether kind ends the loading phase of an attempt.
func IsTerminal(kind Kind) bool {
	switch kind {
	case KindDone, KindFinal, KindError:
		return true
	}
	return false
}
