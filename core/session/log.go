package session

import (
	"time"

	"github.com/koscakluka/ema-lesson/core/events"
)

// Entry is one appended event with its arrival metadata.
type Entry struct {
	Seq        int
	ReceivedAt time.Time
	Event      events.Event
}

// Log is the append-only, arrival-ordered event log of one attempt. A new
// attempt gets a new Log; entries are never reordered or mutated.
type Log struct {
	attemptID string
	entries   []Entry
	now       func() time.Time
}

func NewLog(attemptID string) *Log {
	return &Log{attemptID: attemptID, now: time.Now}
}

func (l *Log) AttemptID() string {
	if l == nil {
		return ""
	}
	return l.attemptID
}

func (l *Log) Append(event events.Event) Entry {
	entry := Entry{Seq: len(l.entries), ReceivedAt: l.now(), Event: event}
	l.entries = append(l.entries, entry)
	return entry
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Events returns a copy of the logged events in arrival order.
func (l *Log) Events() []events.Event {
	if l == nil {
		return nil
	}

	logged := make([]events.Event, len(l.entries))
	for i, entry := range l.entries {
		logged[i] = entry.Event
	}
	return logged
}
