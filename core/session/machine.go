package session

import (
	"github.com/koscakluka/ema-lesson/core/events"
)

// Machine maintains the session view incrementally as events are appended,
// in O(1) per event, while keeping the full log.
//
// Transitions: Loading -> Ready on a render with code, Loading|Ready ->
// Error on an error event. Error is left only through Retry.
type Machine struct {
	log  *Log
	view View
}

func NewMachine(attemptID string) *Machine {
	return &Machine{log: NewLog(attemptID), view: initialView()}
}

// Apply appends event to the log and returns the updated view.
func (m *Machine) Apply(event events.Event) View {
	entry := m.log.Append(event)
	m.view = apply(m.view, entry.Seq, event)
	return m.view
}

// EndOfStream clears the loading flag when the transport ends without a
// terminal event.
func (m *Machine) EndOfStream() View {
	m.view.Loading = false
	return m.view
}

// Interrupt latches an error that did not come from the stream, such as a
// transport failure. It is a no-op once an error is latched.
func (m *Machine) Interrupt(message string) View {
	if m.view.State == StateError {
		return m.view
	}
	m.view.State = StateError
	m.view.ErrorMessage = message
	m.view.Loading = false
	return m.view
}

// Retry starts a new attempt with a fresh log.
func (m *Machine) Retry(attemptID string) View {
	m.log = NewLog(attemptID)
	m.view = initialView()
	return m.view
}

func (m *Machine) View() View {
	return m.view
}

func (m *Machine) Log() *Log {
	return m.log
}
