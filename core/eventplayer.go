package lesson

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-lesson/core/events"
	"github.com/koscakluka/ema-lesson/core/stream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// eventPlayer consumes the event stream of a single attempt. Stopping it
// cancels the stream; events already decoded may still be delivered and
// must be discarded by the receiver's attempt check.
type eventPlayer struct {
	attemptID string

	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

type eventPlayerCallbacks struct {
	onEvent func(ctx context.Context, attemptID string, event events.Event)
	// onEnd runs once the stream is exhausted or failed, unless the
	// player was stopped first. err is nil for a clean end of stream.
	onEnd func(ctx context.Context, attemptID string, err error)
}

func newEventPlayer(attemptID string) *eventPlayer {
	return &eventPlayer{
		attemptID: attemptID,
		closeCh:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (loop *eventPlayer) stopped() bool {
	select {
	case <-loop.closeCh:
		return true
	default:
		return false
	}
}

func (loop *eventPlayer) StartLoop(baseCtx context.Context, src stream.Source, callbacks eventPlayerCallbacks) (started bool) {
	if loop == nil || src == nil || loop.stopped() {
		return false
	}

	loop.startOnce.Do(func() {
		started = true
		loop.started.Store(true)

		ctx, cancel := context.WithCancel(baseCtx)
		go func() {
			select {
			case <-loop.closeCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		go func() {
			defer close(loop.done)
			defer cancel()
			loop.run(ctx, src, callbacks)
		}()
	})

	return started
}

func (loop *eventPlayer) run(ctx context.Context, src stream.Source, callbacks eventPlayerCallbacks) {
	ctx, span := tracer.Start(ctx, "play lesson attempt")
	defer span.End()
	span.SetAttributes(attribute.String("lesson.attempt_id", loop.attemptID))

	count := 0
	for event, err := range stream.Decode(ctx, src) {
		if loop.stopped() || ctx.Err() != nil {
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			callbacks.onEnd(ctx, loop.attemptID, err)
			return
		}
		count++
		callbacks.onEvent(ctx, loop.attemptID, event)
	}

	span.SetAttributes(attribute.Int("lesson.events", count))
	if loop.stopped() || ctx.Err() != nil {
		return
	}
	callbacks.onEnd(ctx, loop.attemptID, nil)
}

func (loop *eventPlayer) Stop() {
	if loop == nil {
		return
	}

	loop.endOnce.Do(func() { close(loop.closeCh) })
}

func (loop *eventPlayer) AwaitDone() {
	if loop == nil {
		return
	}

	if loop.started.Load() {
		<-loop.done
	}
}
