package events

const KindError Kind = "error"

// Error is a terminal protocol failure for the current attempt.
type Error struct {
	Base
	Message string
}

func NewError(message string) Error {
	return Error{Base: NewBase(KindError), Message: message}
}
