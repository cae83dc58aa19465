package lesson

import (
	"context"
	"sync"

	"github.com/koscakluka/ema-lesson/core/sandbox"
)

// renderContextPump delivers the latest render context to the visual host
// from its own goroutine. Updates coalesce: the host only ever sees the
// most recent context.
type renderContextPump struct {
	host *sandbox.Host
	wake chan struct{}

	mu    sync.Mutex
	rc    sandbox.RenderContext
	dirty bool
}

func newRenderContextPump(host *sandbox.Host) *renderContextPump {
	return &renderContextPump{host: host, wake: make(chan struct{}, 1)}
}

func (p *renderContextPump) Update(fn func(rc *sandbox.RenderContext)) {
	p.mu.Lock()
	fn(&p.rc)
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Reset clears everything but the captions preference.
func (p *renderContextPump) Reset() {
	p.Update(func(rc *sandbox.RenderContext) {
		*rc = sandbox.RenderContext{ShowCaptions: rc.ShowCaptions}
	})
}

func (p *renderContextPump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
		}

		p.mu.Lock()
		if !p.dirty {
			p.mu.Unlock()
			continue
		}
		rc := p.rc
		p.dirty = false
		p.mu.Unlock()

		p.host.SetContext(ctx, rc)
	}
}
