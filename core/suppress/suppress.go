// Package suppress rate-limits failure reports coming from the same visual
// fragment so a fragment that fails on every render tick reaches users and
// logs a bounded number of times.
package suppress

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-lesson/internal/clock"
)

const (
	DefaultWindow         = 5 * time.Second
	DefaultMaxPerFragment = 3
)

type reportKey struct {
	fragment Hash
	stage    string
	message  Hash
}

// Suppressor decides whether a failure should be reported. Bookkeeping is
// keyed by content, so it survives retries of an identical fragment.
type Suppressor struct {
	mu sync.Mutex

	clock          clock.Clock
	window         time.Duration
	maxPerFragment int

	lastReported map[reportKey]time.Time
	reportCount  map[Hash]int
}

type Option func(*Suppressor)

func WithWindow(window time.Duration) Option {
	return func(s *Suppressor) {
		if window > 0 {
			s.window = window
		}
	}
}

func WithMaxPerFragment(max int) Option {
	return func(s *Suppressor) {
		if max > 0 {
			s.maxPerFragment = max
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Suppressor) {
		if c != nil {
			s.clock = c
		}
	}
}

func New(opts ...Option) *Suppressor {
	s := &Suppressor{
		clock:          clock.Real(),
		window:         DefaultWindow,
		maxPerFragment: DefaultMaxPerFragment,
		lastReported:   map[reportKey]time.Time{},
		reportCount:    map[Hash]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldReport reports whether a failure of fragment at stage should be
// surfaced. It denies when the same (fragment, stage, message) was reported
// within the window or when the fragment already reached its report
// ceiling. An allowed report is recorded before returning, under the same
// lock as the decision.
func (s *Suppressor) ShouldReport(fragment string, err error, stage string) bool {
	if s == nil {
		return true
	}

	message := ""
	if err != nil {
		message = err.Error()
	}

	fragmentHash := HashFragment(fragment)
	key := reportKey{fragment: fragmentHash, stage: stage, message: hashMessage(message)}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if last, ok := s.lastReported[key]; ok && now.Sub(last) < s.window {
		return false
	}
	if s.reportCount[fragmentHash] >= s.maxPerFragment {
		return false
	}

	s.lastReported[key] = now
	s.reportCount[fragmentHash]++
	return true
}

// Reports returns how many reports were allowed for fragment.
func (s *Suppressor) Reports(fragment string) int {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportCount[HashFragment(fragment)]
}
