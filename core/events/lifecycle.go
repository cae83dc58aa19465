package events

const (
	KindStart     Kind = "start"
	KindSession   Kind = "session"
	KindHeartbeat Kind = "heartbeat"
	KindFinal     Kind = "final"
	KindDone      Kind = "done"
)

// Start marks that the server accepted the lesson request.
type Start struct{ Base }

func NewStart() Start {
	return Start{Base: NewBase(KindStart)}
}

// Session carries the server-side session identity.
type Session struct {
	Base
	ID      string
	Attempt int
}

func NewSession(id string, attempt int) Session {
	return Session{Base: NewBase(KindSession), ID: id, Attempt: attempt}
}

// Heartbeat keeps idle connections alive.
type Heartbeat struct{ Base }

func NewHeartbeat() Heartbeat {
	return Heartbeat{Base: NewBase(KindHeartbeat)}
}

// Final marks the lesson content complete.
type Final struct {
	Base
	Text string
}

func NewFinal(text string) Final {
	return Final{Base: NewBase(KindFinal), Text: text}
}

// Done marks the end of the stream.
type Done struct{ Base }

func NewDone() Done {
	return Done{Base: NewBase(KindDone)}
}
