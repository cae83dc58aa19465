package sandbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-lesson/core/repair"
	"github.com/koscakluka/ema-lesson/core/suppress"
)

const brokenScene = "default: {width: '=time +', height: 1}"

type hostRecorder struct {
	mu       sync.Mutex
	ready    []bool
	frames   int
	failures []*Failure
	readyCh  chan bool
}

func newHostRecorder(h *Host) *hostRecorder {
	r := &hostRecorder{readyCh: make(chan bool, 16)}
	h.SetCallbacks(HostCallbacks{
		OnReadyChange: func(ready bool) {
			r.mu.Lock()
			r.ready = append(r.ready, ready)
			r.mu.Unlock()
			r.readyCh <- ready
		},
		OnFrame: func(Canvas) {
			r.mu.Lock()
			r.frames++
			r.mu.Unlock()
		},
		OnFailure: func(failure *Failure) {
			r.mu.Lock()
			r.failures = append(r.failures, failure)
			r.mu.Unlock()
		},
	})
	return r
}

func (r *hostRecorder) snapshot() ([]bool, int, []*Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.ready...), r.frames, append([]*Failure(nil), r.failures...)
}

func waitReady(t *testing.T, r *hostRecorder, want bool) {
	t.Helper()
	select {
	case got := <-r.readyCh:
		if got != want {
			t.Fatalf("expected ready=%v, got %v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for ready=%v", want)
	}
}

func TestHostReadinessFiresOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	h := NewHost()
	r := newHostRecorder(h)

	h.SetFragment(ctx, Fragment{Code: lessonScene})
	h.SetContext(ctx, RenderContext{TimeSeconds: 1})
	h.SetContext(ctx, RenderContext{TimeSeconds: 2})
	h.SetFragment(ctx, Fragment{Code: lessonScene})

	ready, frames, failures := r.snapshot()
	if len(ready) != 1 || !ready[0] {
		t.Fatalf("expected a single ready=true notice, got %v", ready)
	}
	if frames != 3 {
		t.Fatalf("expected 3 frames, got %d", frames)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
}

func TestHostDropsComponentOnFailure(t *testing.T) {
	ctx := context.Background()
	h := NewHost()
	r := newHostRecorder(h)

	h.SetFragment(ctx, Fragment{Code: lessonScene})
	h.SetFragment(ctx, Fragment{Code: brokenScene})

	status := h.Status()
	if status.Ready || status.Canvas != nil {
		t.Fatalf("expected previous component to be dropped, got %+v", status)
	}
	if status.Failure == nil || status.Failure.Stage != StageCompile {
		t.Fatalf("expected compile failure, got %+v", status.Failure)
	}

	ready, _, failures := r.snapshot()
	if len(ready) != 2 || ready[1] {
		t.Fatalf("expected ready to go true then false, got %v", ready)
	}
	if len(failures) != 1 {
		t.Fatalf("expected one failure notice, got %d", len(failures))
	}
}

func TestHostPlaceholderIsNotAFailure(t *testing.T) {
	h := NewHost()
	r := newHostRecorder(h)

	h.SetFragment(context.Background(), Fragment{Code: PlaceholderMarker})

	status := h.Status()
	if !status.NotReady || status.Ready || status.Failure != nil {
		t.Fatalf("expected not-ready status without failure, got %+v", status)
	}
	if ready, _, failures := r.snapshot(); len(ready) != 0 || len(failures) != 0 {
		t.Fatalf("expected no notices, got ready=%v failures=%v", ready, failures)
	}
}

func TestHostSuppressesRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	h := NewHost(WithReporter(suppress.New()))
	r := newHostRecorder(h)

	h.SetFragment(ctx, Fragment{Code: brokenScene})
	h.SetFragment(ctx, Fragment{Code: lessonScene})
	h.SetFragment(ctx, Fragment{Code: brokenScene})

	if _, _, failures := r.snapshot(); len(failures) != 1 {
		t.Fatalf("expected the repeated failure to be suppressed, got %d notices", len(failures))
	}
	if status := h.Status(); status.Failure == nil {
		t.Fatalf("expected suppressed failure to still show the fallback")
	}
}

func TestHostRepairsFailingFragment(t *testing.T) {
	ctx := context.Background()
	signal := repair.NewSignal()
	release := make(chan struct{})
	requests := make(chan repair.Request, 1)

	repairer := repair.RepairerFunc(func(ctx context.Context, req repair.Request) (string, error) {
		requests <- req
		<-release
		return lessonScene, nil
	})
	h := NewHost(WithRepairer(repairer, 1), WithRepairPublisher(signal.Publisher()))
	r := newHostRecorder(h)

	h.SetFragment(ctx, Fragment{Code: brokenScene})

	req := <-requests
	if req.Fragment != brokenScene || req.Stage != string(StageCompile) || req.Message == "" {
		t.Fatalf("unexpected repair request %+v", req)
	}
	if !signal.Observer().Repairing() {
		t.Fatalf("expected repairing to be published while the repair is in flight")
	}

	close(release)
	waitReady(t, r, true)

	if signal.Observer().Repairing() {
		t.Fatalf("expected repairing to be cleared after the repair")
	}
	if status := h.Status(); status.Failure != nil || status.Canvas == nil {
		t.Fatalf("expected repaired component on screen, got %+v", status)
	}
}

func TestHostIgnoresRepairAfterHalt(t *testing.T) {
	ctx := context.Background()
	signal := repair.NewSignal()
	release := make(chan struct{})
	done := make(chan struct{})

	repairer := repair.RepairerFunc(func(ctx context.Context, req repair.Request) (string, error) {
		defer close(done)
		<-release
		return lessonScene, nil
	})
	h := NewHost(WithRepairer(repairer, 1), WithRepairPublisher(signal.Publisher()))
	r := newHostRecorder(h)

	h.SetFragment(ctx, Fragment{Code: brokenScene})
	h.Halt()
	if signal.Observer().Repairing() {
		t.Fatalf("expected halt to clear repairing")
	}

	close(release)
	<-done
	h.SetFragment(ctx, Fragment{Code: lessonScene})

	// The late completion takes the lock after Repair returns.
	time.Sleep(50 * time.Millisecond)
	if status := h.Status(); status.Ready || !status.Halted {
		t.Fatalf("expected halted host to stay blank, got %+v", status)
	}
	if ready, _, _ := r.snapshot(); len(ready) != 0 {
		t.Fatalf("expected no readiness notices, got %v", ready)
	}
}

func TestHostForwardsUpstreamRepairing(t *testing.T) {
	signal := repair.NewSignal()
	h := NewHost(WithRepairPublisher(signal.Publisher()))
	updates, cancel := signal.Observer().Subscribe()
	defer cancel()

	h.SetUpstreamRepairing(true)
	if got := <-updates; !got {
		t.Fatalf("expected repairing=true, got %v", got)
	}
	h.SetUpstreamRepairing(false)
	if got := <-updates; got {
		t.Fatalf("expected repairing=false, got %v", got)
	}
}

func TestHostResetStartsClean(t *testing.T) {
	ctx := context.Background()
	signal := repair.NewSignal()
	h := NewHost(WithRepairPublisher(signal.Publisher()))
	r := newHostRecorder(h)

	h.SetUpstreamRepairing(true)
	h.SetFragment(ctx, Fragment{Code: lessonScene})
	h.Halt()
	if !signal.Observer().Repairing() {
		t.Fatalf("expected upstream repairing to survive a halt")
	}
	h.Reset()
	if signal.Observer().Repairing() {
		t.Fatalf("expected repairing signal cleared after reset, still true")
	}
	h.SetFragment(ctx, Fragment{Code: lessonScene})

	if status := h.Status(); !status.Ready || status.Halted {
		t.Fatalf("expected reset host to accept fragments, got %+v", status)
	}
	if ready, _, _ := r.snapshot(); len(ready) != 3 {
		t.Fatalf("expected ready true, false, true; got %v", ready)
	}
}
