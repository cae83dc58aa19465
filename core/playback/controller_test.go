package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-lesson/core/events"
	"github.com/koscakluka/ema-lesson/core/repair"
)

type fakeElement struct {
	mu        sync.Mutex
	loads     []Source
	plays     int
	pauses    int
	seeks     []float64
	volume    float64
	unlocks   int
	playErr   error
	callbacks Callbacks
}

func (f *fakeElement) Load(src Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, src)
	return nil
}

func (f *fakeElement) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return f.playErr
}

func (f *fakeElement) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeElement) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeElement) SetVolume(volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
}

func (f *fakeElement) SetCallbacks(callbacks Callbacks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = callbacks
}

func (f *fakeElement) Unlock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocks++
	f.playErr = nil
}

func (f *fakeElement) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

func (f *fakeElement) currentCallbacks() Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks
}

func narration(url string) events.Speak {
	speak := events.NewSpeak("hello world", url)
	speak.Words = []events.WordTimestamp{
		{Word: "hello", Start: 0, End: 0.4},
		{Word: "world", Start: 0.5, End: 0.9},
	}
	return speak
}

func TestControllerWaitsForVisualsBeforePlaying(t *testing.T) {
	element := &fakeElement{}
	c := NewController(WithAudioElement(element), WithBaseURL("https://tts.example"))

	if err := c.SetNarration(narration("/a.mp3")); err != nil {
		t.Fatalf("expected narration to be accepted, got %v", err)
	}
	if got := element.playCount(); got != 0 {
		t.Fatalf("expected no play before visuals are ready, got %d", got)
	}
	if len(element.loads) != 0 {
		t.Fatalf("expected no source to be assigned before visuals are ready")
	}

	c.SetVisualsReady(true)
	c.SetVisualsReady(false)
	c.SetVisualsReady(true)

	if got := element.playCount(); got != 1 {
		t.Fatalf("expected exactly one play attempt, got %d", got)
	}
	if len(element.loads) != 1 || element.loads[0].URL != "https://tts.example/a.mp3" {
		t.Fatalf("expected resolved narration to be loaded once, got %+v", element.loads)
	}
	if state := c.State(); !state.Playing || state.PlayAttempts != 1 {
		t.Fatalf("expected playing after one attempt, got %+v", state)
	}
}

func TestControllerRepairingPausesAndResumes(t *testing.T) {
	element := &fakeElement{}
	c := NewController(WithAudioElement(element))

	c.setRepairing(true)
	c.SetNarration(narration("https://cdn.example/a.mp3"))
	c.SetVisualsReady(true)
	if got := element.playCount(); got != 0 {
		t.Fatalf("expected no play while repairing, got %d", got)
	}

	c.setRepairing(false)
	if got := element.playCount(); got != 1 {
		t.Fatalf("expected play once repair ends, got %d", got)
	}

	c.setRepairing(true)
	if state := c.State(); state.Playing || !state.Repairing {
		t.Fatalf("expected paused while repairing, got %+v", state)
	}
	if element.pauses != 1 {
		t.Fatalf("expected one pause, got %d", element.pauses)
	}

	c.setRepairing(false)
	if state := c.State(); !state.Playing {
		t.Fatalf("expected playback to resume after repair, got %+v", state)
	}

	c.setRepairing(true)
	c.SetVisualsReady(false)
	c.setRepairing(false)
	if got := element.playCount(); got != 2 {
		t.Fatalf("expected no play while visuals are down, got %d plays", got)
	}
	if state := c.State(); state.Playing {
		t.Fatalf("expected narration to stay paused without visuals, got %+v", state)
	}

	c.SetVisualsReady(true)
	if got := element.playCount(); got != 3 {
		t.Fatalf("expected playback to resume with the visuals, got %d plays", got)
	}
	if state := c.State(); !state.Playing {
		t.Fatalf("expected playing after visuals returned, got %+v", state)
	}
}

func TestControllerWatchFollowsSignal(t *testing.T) {
	signal := repair.NewSignal()
	c := NewController(WithAudioElement(&fakeElement{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Watch(ctx, signal.Observer())
	}()

	signal.Publisher().SetRepairing(true)
	deadline := time.Now().Add(2 * time.Second)
	for !c.State().Repairing {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for repairing to propagate")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestControllerRejectedPlayWaitsForGesture(t *testing.T) {
	element := &fakeElement{playErr: ErrPlayRejected}
	c := NewController(WithAudioElement(element))

	c.SetNarration(narration("https://cdn.example/a.mp3"))
	c.SetVisualsReady(true)
	c.SetVisualsReady(false)
	c.SetVisualsReady(true)

	state := c.State()
	if !state.NeedsUserGesture || state.Playing {
		t.Fatalf("expected to need a user gesture, got %+v", state)
	}
	if got := element.playCount(); got != 1 {
		t.Fatalf("expected no automatic retry, got %d play attempts", got)
	}

	c.Gesture()

	state = c.State()
	if state.NeedsUserGesture || !state.Playing {
		t.Fatalf("expected playback after the gesture, got %+v", state)
	}
	if element.unlocks != 1 || element.playCount() != 2 {
		t.Fatalf("expected one unlock and a second play, got %d unlocks and %d plays", element.unlocks, element.playCount())
	}
}

func TestControllerEndAndReplay(t *testing.T) {
	element := &fakeElement{}
	c := NewController(WithAudioElement(element))
	c.SetNarration(narration("https://cdn.example/a.mp3"))
	c.SetVisualsReady(true)

	callbacks := element.currentCallbacks()
	callbacks.OnCanPlay()
	callbacks.OnTimeUpdate(0.6)
	if got := c.SpokenText(); got != "hello world" {
		t.Fatalf("expected spoken text to follow the position, got %q", got)
	}

	callbacks.OnEnded()
	state := c.State()
	if !state.Ended || state.Playing || state.TimeSeconds != 0 || !state.AudioReady {
		t.Fatalf("expected ended state at time zero, got %+v", state)
	}

	c.Replay()
	state = c.State()
	if state.Ended || !state.Playing {
		t.Fatalf("expected replay to restart playback, got %+v", state)
	}
	if len(element.seeks) != 1 || element.seeks[0] != 0 {
		t.Fatalf("expected a seek to zero, got %v", element.seeks)
	}
}

func TestControllerResetClearsStateAndIgnoresStaleCallbacks(t *testing.T) {
	element := &fakeElement{playErr: ErrPlayRejected}
	c := NewController(WithAudioElement(element))
	c.SetNarration(narration("https://cdn.example/a.mp3"))
	c.SetVisualsReady(true)
	stale := element.currentCallbacks()

	c.Reset()
	stale.OnCanPlay()
	stale.OnTimeUpdate(3)

	state := c.State()
	if state != (State{}) {
		t.Fatalf("expected a blank state after reset, got %+v", state)
	}
}

func TestControllerStateChangesAreReported(t *testing.T) {
	var mu sync.Mutex
	var states []State
	element := &fakeElement{}
	c := NewController(WithAudioElement(element), WithOnStateChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}))

	c.SetVisualsReady(true)
	c.SetVisualsReady(true)
	c.SetNarration(narration("https://cdn.example/a.mp3"))

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Fatalf("expected two state changes, got %d", len(states))
	}
	if last := states[len(states)-1]; !last.Playing {
		t.Fatalf("expected last state to be playing, got %+v", last)
	}
}

func TestControllerWithoutElementDoesNotPlay(t *testing.T) {
	var element *fakeElement
	c := NewController(WithAudioElement(element))
	c.SetNarration(narration("https://cdn.example/a.mp3"))
	c.SetVisualsReady(true)

	if state := c.State(); state.Playing {
		t.Fatalf("expected no playback without an element, got %+v", state)
	}
}

func TestControllerClampsVolume(t *testing.T) {
	element := &fakeElement{}
	c := NewController(WithAudioElement(element))

	c.SetVolume(3)
	if element.volume != 1 {
		t.Fatalf("expected volume clamped to 1, got %v", element.volume)
	}
	c.SetVolume(-0.5)
	if c.Volume() != 0 {
		t.Fatalf("expected volume clamped to 0, got %v", c.Volume())
	}
}

func TestResolveAudioURL(t *testing.T) {
	cases := []struct {
		base, ref, want string
	}{
		{"https://tts.example", "/a.mp3", "https://tts.example/a.mp3"},
		{"https://tts.example/api/", "/a.mp3", "https://tts.example/a.mp3"},
		{"https://tts.example", "https://cdn.example/b.mp3", "https://cdn.example/b.mp3"},
		{"", "/a.mp3", "/a.mp3"},
		{"https://tts.example", "", ""},
	}

	for _, tc := range cases {
		got, err := ResolveAudioURL(tc.base, tc.ref)
		if err != nil {
			t.Fatalf("expected %q to resolve, got %v", tc.ref, err)
		}
		if got != tc.want {
			t.Fatalf("expected %q for (%q, %q), got %q", tc.want, tc.base, tc.ref, got)
		}
	}
}
