// Package repair carries the "repairing" state between the visual host,
// which is its only writer, and the narration controller, which only
// observes it.
package repair

import "sync"

// Publisher is the write side of the repairing signal.
type Publisher interface {
	SetRepairing(repairing bool)
}

// Observer is the read side of the repairing signal.
type Observer interface {
	Repairing() bool
	// Subscribe returns a channel receiving the latest value whenever it
	// changes, plus a cancel func. The channel holds at most one pending
	// value; a slow reader sees the most recent one.
	Subscribe() (<-chan bool, func())
}

// Signal is an observable boolean. Use Publisher() and Observer() to hand
// out the two sides.
type Signal struct {
	mu          sync.Mutex
	value       bool
	subscribers map[int]chan bool
	nextID      int
}

func NewSignal() *Signal {
	return &Signal{subscribers: map[int]chan bool{}}
}

func (s *Signal) Publisher() Publisher { return signalPublisher{s} }
func (s *Signal) Observer() Observer   { return signalObserver{s} }

type signalPublisher struct{ signal *Signal }

func (p signalPublisher) SetRepairing(repairing bool) {
	p.signal.set(repairing)
}

type signalObserver struct{ signal *Signal }

func (o signalObserver) Repairing() bool {
	return o.signal.get()
}

func (o signalObserver) Subscribe() (<-chan bool, func()) {
	return o.signal.subscribe()
}

func (s *Signal) get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Signal) set(value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.value == value {
		return
	}
	s.value = value

	for _, ch := range s.subscribers {
		deliverLatest(ch, value)
	}
}

func (s *Signal) subscribe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan bool, 1)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

func deliverLatest(ch chan bool, value bool) {
	select {
	case <-ch:
	default:
	}
	ch <- value
}
