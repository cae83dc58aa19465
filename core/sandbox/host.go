package sandbox

import (
	"context"
	"errors"
	"sync"

	"github.com/koscakluka/ema-lesson/core/repair"
)

const DefaultMaxRepairs = 1

// Reporter decides whether a failure is worth surfacing.
type Reporter interface {
	ShouldReport(fragment string, err error, stage string) bool
}

type HostCallbacks struct {
	OnReadyChange func(ready bool)
	OnFrame       func(canvas Canvas)
	OnFailure     func(failure *Failure)
}

// HostStatus is a snapshot of what the host is currently showing.
type HostStatus struct {
	Ready    bool
	NotReady bool
	Halted   bool
	Failure  *Failure
	Canvas   Canvas
}

// Host keeps the current fragment compiled and instantiated against the
// latest render context, and is the only writer of the repairing signal.
type Host struct {
	mu sync.Mutex

	sandbox    *Sandbox
	caps       Capabilities
	reporter   Reporter
	repairer   repair.Repairer
	publisher  repair.Publisher
	maxRepairs int
	callbacks  HostCallbacks

	fragment  Fragment
	patch     string
	rc        RenderContext
	component *Component
	canvas    Canvas
	failure   *Failure
	notReady  bool
	ready     bool
	halted    bool

	repairs map[string]int
	// repairSeq invalidates in-flight repairs whenever the fragment or
	// attempt changes.
	repairSeq         uint64
	localRepairing    bool
	upstreamRepairing bool

	ctx    context.Context
	cancel context.CancelFunc
}

type HostOption func(*Host)

func WithSandbox(s *Sandbox) HostOption {
	return func(h *Host) {
		h.sandbox = s
	}
}

func WithCapabilities(caps Capabilities) HostOption {
	return func(h *Host) {
		h.caps = caps
	}
}

func WithReporter(reporter Reporter) HostOption {
	return func(h *Host) {
		h.reporter = reporter
	}
}

// WithRepairer enables upstream repair of failing fragments, at most
// maxAttempts times per fragment.
func WithRepairer(repairer repair.Repairer, maxAttempts int) HostOption {
	return func(h *Host) {
		h.repairer = repairer
		h.maxRepairs = maxAttempts
	}
}

func WithRepairPublisher(publisher repair.Publisher) HostOption {
	return func(h *Host) {
		h.publisher = publisher
	}
}

func NewHost(opts ...HostOption) *Host {
	h := &Host{
		maxRepairs: DefaultMaxRepairs,
		repairs:    map[string]int{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.sandbox == nil {
		h.sandbox = New()
	}
	h.caps = h.caps.withDefaults()
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

func (h *Host) SetCallbacks(callbacks HostCallbacks) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = callbacks
}

// hostNotice is a callback invocation collected under the lock and run
// after it is released.
type hostNotice func(HostCallbacks)

func (h *Host) flush(notices []hostNotice) {
	if len(notices) == 0 {
		return
	}
	h.mu.Lock()
	callbacks := h.callbacks
	h.mu.Unlock()

	for _, notice := range notices {
		notice(callbacks)
	}
}

// SetFragment replaces the current fragment and drops any patch applied to
// the previous one.
func (h *Host) SetFragment(ctx context.Context, fragment Fragment) {
	h.mu.Lock()
	if h.halted || fragment == h.fragment {
		h.mu.Unlock()
		return
	}
	h.fragment = fragment
	h.patch = ""
	h.stopRepairLocked()
	notices := h.rebuildLocked(ctx)
	h.mu.Unlock()

	h.flush(notices)
}

// SetPatch swaps in corrected code for the current fragment.
func (h *Host) SetPatch(ctx context.Context, code string) {
	h.mu.Lock()
	if h.halted || code == "" || code == h.patch {
		h.mu.Unlock()
		return
	}
	h.patch = code
	notices := h.rebuildLocked(ctx)
	h.mu.Unlock()

	h.flush(notices)
}

// SetContext re-instantiates the current component against rc.
func (h *Host) SetContext(ctx context.Context, rc RenderContext) {
	h.mu.Lock()
	h.rc = rc
	if h.halted || h.component == nil {
		h.mu.Unlock()
		return
	}
	notices := h.instantiateLocked(ctx)
	h.mu.Unlock()

	h.flush(notices)
}

// SetUpstreamRepairing forwards a server-side repair notice to the
// repairing signal.
func (h *Host) SetUpstreamRepairing(repairing bool) {
	h.mu.Lock()
	h.upstreamRepairing = repairing
	h.publishLocked()
	h.mu.Unlock()
}

// Halt freezes the host: the component is dropped, readiness goes false,
// later updates and in-flight repairs are ignored.
func (h *Host) Halt() {
	h.mu.Lock()
	h.halted = true
	h.component, h.canvas = nil, nil
	h.stopRepairLocked()
	h.publishLocked()
	notices := h.setReadyLocked(false)
	h.mu.Unlock()

	h.flush(notices)
}

// Reset returns the host to its initial state for a new attempt. Repair
// bookkeeping is kept so a retry does not re-request the same repair.
func (h *Host) Reset() {
	h.mu.Lock()
	h.cancel()
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.fragment = Fragment{}
	h.patch = ""
	h.rc = RenderContext{}
	h.component, h.canvas, h.failure = nil, nil, nil
	h.notReady = false
	h.halted = false
	h.upstreamRepairing = false
	h.stopRepairLocked()
	h.publishLocked()
	notices := h.setReadyLocked(false)
	h.mu.Unlock()

	h.flush(notices)
}

// Close cancels in-flight repairs.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel()
	h.repairSeq++
}

func (h *Host) Status() HostStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HostStatus{
		Ready:    h.ready,
		NotReady: h.notReady,
		Halted:   h.halted,
		Failure:  h.failure,
		Canvas:   h.canvas,
	}
}

func (h *Host) activeFragment() Fragment {
	if h.patch != "" {
		return Fragment{Code: h.patch, Language: h.fragment.Language}
	}
	return h.fragment
}

func (h *Host) rebuildLocked(ctx context.Context) []hostNotice {
	h.component, h.canvas, h.failure = nil, nil, nil
	h.notReady = false

	fragment := h.activeFragment()
	component, err := h.sandbox.Compile(ctx, fragment, h.caps)
	switch {
	case errors.Is(err, ErrNotReady):
		h.notReady = true
		return h.setReadyLocked(false)
	case err != nil:
		return h.failLocked(ctx, fragment, err)
	}

	h.component = component
	return h.instantiateLocked(ctx)
}

func (h *Host) instantiateLocked(ctx context.Context) []hostNotice {
	canvas, err := h.component.Instantiate(ctx, h.rc)
	if err != nil {
		h.component, h.canvas = nil, nil
		return h.failLocked(ctx, h.activeFragment(), err)
	}

	h.canvas = canvas
	h.failure = nil
	notices := h.setReadyLocked(true)
	return append(notices, func(callbacks HostCallbacks) {
		if callbacks.OnFrame != nil {
			callbacks.OnFrame(canvas)
		}
	})
}

func (h *Host) failLocked(ctx context.Context, fragment Fragment, err error) []hostNotice {
	failure, ok := AsFailure(err)
	if !ok {
		failure = runtimeFailure(err)
	}
	h.failure = failure
	notices := h.setReadyLocked(false)

	if h.reporter != nil && !h.reporter.ShouldReport(fragment.Code, failure.Err, string(failure.Stage)) {
		logger.DebugContext(ctx, "suppressed fragment failure", "stage", failure.Stage, "error", failure.Err)
		return notices
	}
	logger.WarnContext(ctx, "fragment failed", "stage", failure.Stage, "error", failure.Err)

	notices = append(notices, func(callbacks HostCallbacks) {
		if callbacks.OnFailure != nil {
			callbacks.OnFailure(failure)
		}
	})
	if failure.Stage != StageUnsupported {
		h.requestRepairLocked(fragment, failure)
	}
	return notices
}

func (h *Host) setReadyLocked(ready bool) []hostNotice {
	if h.ready == ready {
		return nil
	}
	h.ready = ready
	return []hostNotice{func(callbacks HostCallbacks) {
		if callbacks.OnReadyChange != nil {
			callbacks.OnReadyChange(ready)
		}
	}}
}

func (h *Host) publishLocked() {
	if h.publisher != nil {
		h.publisher.SetRepairing(h.upstreamRepairing || h.localRepairing)
	}
}

func (h *Host) stopRepairLocked() {
	if !h.localRepairing {
		return
	}
	h.repairSeq++
	h.localRepairing = false
	h.publishLocked()
}

func (h *Host) requestRepairLocked(fragment Fragment, failure *Failure) {
	if h.repairer == nil || h.localRepairing || h.repairs[h.fragment.Code] >= h.maxRepairs {
		return
	}
	h.repairs[h.fragment.Code]++
	h.repairSeq++
	h.localRepairing = true
	h.publishLocked()

	seq := h.repairSeq
	ctx := h.ctx
	req := repair.Request{
		Fragment: fragment.Code,
		Language: fragment.Language,
		Stage:    string(failure.Stage),
		Message:  failure.Message(),
	}
	go h.repair(ctx, seq, req)
}

func (h *Host) repair(ctx context.Context, seq uint64, req repair.Request) {
	code, err := h.repairer.Repair(ctx, req)

	h.mu.Lock()
	if seq != h.repairSeq {
		h.mu.Unlock()
		return
	}
	h.localRepairing = false

	var notices []hostNotice
	if err != nil {
		logger.WarnContext(ctx, "fragment repair failed", "error", err)
	} else if !h.halted && code != h.patch {
		h.patch = code
		notices = h.rebuildLocked(ctx)
	}
	h.publishLocked()
	h.mu.Unlock()

	h.flush(notices)
}
