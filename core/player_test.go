package lesson

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-lesson/core/playback"
	"github.com/koscakluka/ema-lesson/core/sandbox"
	"github.com/koscakluka/ema-lesson/core/session"
	"github.com/koscakluka/ema-lesson/core/stream"
)

type countingElement struct {
	mu        sync.Mutex
	loads     []playback.Source
	plays     int
	callbacks playback.Callbacks
}

func (e *countingElement) Load(src playback.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads = append(e.loads, src)
	return nil
}

func (e *countingElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays++
	return nil
}

func (e *countingElement) Pause()            {}
func (e *countingElement) Seek(float64)      {}
func (e *countingElement) SetVolume(float64) {}
func (e *countingElement) SetCallbacks(callbacks playback.Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = callbacks
}

func (e *countingElement) playCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) record(notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *noticeRecorder) kinds() []NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]NoticeKind, 0, len(r.notices))
	for _, notice := range r.notices {
		kinds = append(kinds, notice.Kind)
	}
	return kinds
}

const validScene = `{"default": {"width": 320, "height": 180, "nodes": [{"kind": "text", "x": 10, "y": 20, "text": "=slide.title"}]}}`

func renderLine(code string) string {
	code = strings.ReplaceAll(code, `"`, `\"`)
	return `{"type":"render","render":{"code":"` + code + `","language":"json"}}` + "\n"
}

func textsOf(canvas sandbox.Canvas) []string {
	list, ok := canvas.(*sandbox.DisplayList)
	if !ok {
		return nil
	}
	return list.Texts()
}

func startPlayer(t *testing.T, p *Player, src stream.Source, opts ...PlayOption) {
	t.Helper()
	if err := p.Start(context.Background(), src, opts...); err != nil {
		t.Fatalf("expected player to start, got %v", err)
	}
	t.Cleanup(func() { p.Close() })
	p.Wait()
}

func TestPlayerAssemblesChunksSplitMidLine(t *testing.T) {
	full := `{"type":"render","render":{"code":"VALID"}}` + "\n" +
		`{"type":"speak","speak":{"text":"hi","audio_url":"/a.mp3"}}` + "\n" +
		`{"type":"done"}` + "\n"
	chunks := []string{full[:30], full[30:90], full[90:]}

	element := &countingElement{}
	p := NewPlayer(WithAudioElement(element))
	startPlayer(t, p, stream.Static(chunks...))

	view := p.View()
	if view.State != session.StateReady {
		t.Fatalf("expected state %q, got %q", session.StateReady, view.State)
	}
	if view.LatestRender == nil || view.LatestRender.Code != "VALID" {
		t.Fatalf("expected latest render VALID, got %+v", view.LatestRender)
	}
	if view.LatestSpeak == nil || view.LatestSpeak.AudioURL != "/a.mp3" {
		t.Fatalf("expected latest speak /a.mp3, got %+v", view.LatestSpeak)
	}
	if view.Loading {
		t.Fatalf("expected loading to be cleared")
	}
	if got := len(p.Events()); got != 3 {
		t.Fatalf("expected 3 logged events, got %d", got)
	}
	if got := element.playCount(); got != 0 {
		t.Fatalf("expected no narration while the visual is not ready, got %d plays", got)
	}
}

func TestPlayerErrorLatchesAndBlocksNarration(t *testing.T) {
	chunk := `{"type":"error","message":"boom"}` + "\n" +
		renderLine(validScene) +
		`{"type":"speak","speak":{"text":"hi","audio_url":"/a.mp3"}}` + "\n"

	element := &countingElement{}
	notices := &noticeRecorder{}
	p := NewPlayer(WithAudioElement(element))
	startPlayer(t, p, stream.Static(chunk), WithNoticeCallback(notices.record))

	view := p.View()
	if view.State != session.StateError || view.ErrorMessage != "boom" {
		t.Fatalf("expected error state with message boom, got %q %q", view.State, view.ErrorMessage)
	}
	if view.LatestRender != nil || view.LatestSpeak != nil {
		t.Fatalf("expected late events not to reach the view")
	}
	if got := len(p.Events()); got != 3 {
		t.Fatalf("expected late events to still be logged, got %d", got)
	}
	if got := element.playCount(); got != 0 {
		t.Fatalf("expected zero play attempts, got %d", got)
	}
	if status := p.Visual(); !status.Halted || status.Ready {
		t.Fatalf("expected halted visuals, got %+v", status)
	}
	if kinds := notices.kinds(); len(kinds) != 1 || kinds[0] != NoticeLesson {
		t.Fatalf("expected one lesson notice, got %v", kinds)
	}
}

func TestPlayerStartsNarrationOnceVisualsAreReady(t *testing.T) {
	chunk := renderLine(validScene) +
		`{"type":"meta","meta":{"slide":{"index":1,"total":2,"title":"Vectors"}}}` + "\n" +
		`{"type":"speak","speak":{"text":"hi","audio_url":"/a.mp3","duration_seconds":2}}` + "\n" +
		`{"type":"speak","speak":{"text":"hi","audio_url":"/a.mp3","duration_seconds":2}}` + "\n" +
		`{"type":"done"}` + "\n"

	element := &countingElement{}
	var ready atomic.Bool
	p := NewPlayer(WithAudioElement(element), WithNarrationBaseURL("https://tts.example"))
	startPlayer(t, p, stream.Static(chunk), WithReadyCallback(func(r bool) { ready.Store(r) }))

	if !ready.Load() {
		t.Fatalf("expected visuals to become ready")
	}
	if got := element.playCount(); got != 1 {
		t.Fatalf("expected exactly one play attempt, got %d", got)
	}
	if len(element.loads) != 1 || element.loads[0].URL != "https://tts.example/a.mp3" || element.loads[0].Duration != 2 {
		t.Fatalf("expected resolved narration to load once, got %+v", element.loads)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if status := p.Visual(); status.Canvas != nil {
			if texts := textsOf(status.Canvas); len(texts) == 1 && texts[0] == "Vectors" {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the slide title to be drawn")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayerRetryStartsFreshAttempt(t *testing.T) {
	var calls atomic.Int32
	src := stream.SourceFunc(func(ctx context.Context) func(func(string, error) bool) {
		call := calls.Add(1)
		return func(yield func(string, error) bool) {
			if call == 1 {
				yield(`{"type":"error","message":"boom"}`+"\n", nil)
				return
			}
			yield(renderLine(validScene)+`{"type":"done"}`+"\n", nil)
		}
	})

	p := NewPlayer(WithAudioElement(&countingElement{}))
	startPlayer(t, p, src)
	firstAttempt := p.AttemptID()
	if view := p.View(); view.State != session.StateError {
		t.Fatalf("expected first attempt to fail, got %q", view.State)
	}

	if err := p.Retry(); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	p.Wait()

	if p.AttemptID() == firstAttempt {
		t.Fatalf("expected a new attempt id")
	}
	view := p.View()
	if view.State != session.StateReady || view.Loading {
		t.Fatalf("expected ready view after retry, got %q loading=%v", view.State, view.Loading)
	}
	if got := len(p.Events()); got != 2 {
		t.Fatalf("expected a fresh log with 2 events, got %d", got)
	}
	if status := p.Visual(); !status.Ready || status.Halted {
		t.Fatalf("expected visuals to recover after retry, got %+v", status)
	}
}

func TestPlayerRetryClearsUpstreamRepairing(t *testing.T) {
	var calls atomic.Int32
	src := stream.SourceFunc(func(ctx context.Context) func(func(string, error) bool) {
		call := calls.Add(1)
		return func(yield func(string, error) bool) {
			if call == 1 {
				yield(`{"type":"meta","meta":{"repairing":true}}`+"\n"+`{"type":"error","message":"boom"}`+"\n", nil)
				return
			}
			yield(renderLine(validScene)+`{"type":"speak","speak":{"text":"hi","audio_url":"/a.mp3"}}`+"\n", nil)
		}
	})

	element := &countingElement{}
	p := NewPlayer(WithAudioElement(element))
	startPlayer(t, p, src)

	if err := p.Retry(); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	p.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for element.playCount() != 1 || p.Playback().Repairing {
		if time.Now().After(deadline) {
			t.Fatalf("expected narration to play after retry, got %d plays, state %+v", element.playCount(), p.Playback())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayerDrawsSpokenTextFromNarration(t *testing.T) {
	scene := `{"default": {"width": 10, "height": 10, "nodes": [{"kind": "text", "x": 0, "y": 0, "text": "=spoken"}]}}`
	chunk := renderLine(scene) +
		`{"type":"speak","speak":{"text":"hello there","audio_url":"/a.mp3","words":[{"word":"hello","start":0,"end":0.4},{"word":"there","start":0.5,"end":0.9}]}}` + "\n"

	element := &countingElement{}
	p := NewPlayer(WithAudioElement(element))
	startPlayer(t, p, stream.Static(chunk))

	if got := element.playCount(); got != 1 {
		t.Fatalf("expected narration to start, got %d plays", got)
	}
	element.mu.Lock()
	onTime := element.callbacks.OnTimeUpdate
	element.mu.Unlock()
	onTime(0.6)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if texts := textsOf(p.Visual().Canvas); len(texts) == 1 && texts[0] == "hello there" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for spoken text, got %v", textsOf(p.Visual().Canvas))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayerTransportFailureIsGeneric(t *testing.T) {
	src := stream.SourceFunc(func(ctx context.Context) func(func(string, error) bool) {
		return func(yield func(string, error) bool) {
			if !yield(renderLine(validScene), nil) {
				return
			}
			yield("", context.DeadlineExceeded)
		}
	})

	p := NewPlayer(WithAudioElement(&countingElement{}))
	startPlayer(t, p, src)

	view := p.View()
	if view.State != session.StateError || view.ErrorMessage != transportFailureMessage {
		t.Fatalf("expected generic transport failure, got %q %q", view.State, view.ErrorMessage)
	}
}

func TestPlayerSuppressesRepeatedVisualFailures(t *testing.T) {
	broken := `{"default": {"width": "=time +", "height": 1}}`
	chunk := renderLine(broken) + renderLine(validScene) + renderLine(broken)

	notices := &noticeRecorder{}
	p := NewPlayer(WithAudioElement(&countingElement{}))
	startPlayer(t, p, stream.Static(chunk), WithNoticeCallback(notices.record))

	if kinds := notices.kinds(); len(kinds) != 1 || kinds[0] != NoticeVisual {
		t.Fatalf("expected one visual notice, got %v", kinds)
	}
	if status := p.Visual(); status.Failure == nil || status.Ready {
		t.Fatalf("expected fallback for the failing visual, got %+v", status)
	}
}

func TestPlayerRejectsDoubleStartAndUseAfterClose(t *testing.T) {
	p := NewPlayer(WithAudioElement(&countingElement{}))
	if err := p.Retry(); err != ErrNotStarted {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	startPlayer(t, p, stream.Static())
	if err := p.Start(context.Background(), stream.Static()); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	p.Close()
	if err := p.Retry(); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRenderNotes(t *testing.T) {
	html, err := RenderNotes("# Vectors\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("expected notes to render, got %v", err)
	}
	if !strings.Contains(html, "<h1>Vectors</h1>") || !strings.Contains(html, "<table>") {
		t.Fatalf("expected heading and table in %q", html)
	}
}
