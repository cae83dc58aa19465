package stream

import (
	"bytes"
	"context"

	"github.com/koscakluka/ema-lesson/core/events"
)

// Decoder turns an arbitrarily chunked newline-delimited record stream into
// typed events. Malformed lines are dropped; Decoder never fails.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	pending []byte
	closed  bool
	dropped int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed buffers chunk and returns the events of every line it completes, in
// arrival order. After Close it returns nil.
func (d *Decoder) Feed(chunk string) []events.Event {
	if d == nil || d.closed {
		return nil
	}

	d.pending = append(d.pending, chunk...)

	var decoded []events.Event
	for {
		newline := bytes.IndexByte(d.pending, '\n')
		if newline < 0 {
			break
		}

		line := d.pending[:newline]
		d.pending = d.pending[newline+1:]
		if event, ok := d.decodeLine(line); ok {
			decoded = append(decoded, event)
		}
	}

	if len(d.pending) == 0 {
		d.pending = nil
	}
	return decoded
}

// Flush decodes a trailing line that was never newline-terminated. It is
// meant for end of stream.
func (d *Decoder) Flush() []events.Event {
	if d == nil || d.closed || len(d.pending) == 0 {
		return nil
	}

	line := d.pending
	d.pending = nil
	if event, ok := d.decodeLine(line); ok {
		return []events.Event{event}
	}
	return nil
}

// Close stops the decoder. Buffered partial input is discarded.
func (d *Decoder) Close() {
	if d == nil {
		return
	}

	d.closed = true
	d.pending = nil
}

// Dropped reports how many non-empty lines failed to decode.
func (d *Decoder) Dropped() int {
	if d == nil {
		return 0
	}
	return d.dropped
}

func (d *Decoder) decodeLine(line []byte) (events.Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}

	event, err := events.Decode(line)
	if err != nil {
		d.dropped++
		logger.Debug("dropped malformed stream record", "error", err, "length", len(line))
		return nil, false
	}
	return event, true
}

// Decode drains src through a fresh Decoder and yields every event. The
// iteration ends when src ends, ctx is cancelled, or the consumer stops.
// Transport errors are yielded with a nil event and end the iteration.
func Decode(ctx context.Context, src Source) func(func(events.Event, error) bool) {
	return func(yield func(events.Event, error) bool) {
		decoder := NewDecoder()
		defer decoder.Close()

		for chunk, err := range src.Chunks(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			for _, event := range decoder.Feed(chunk) {
				if !yield(event, nil) {
					return
				}
			}
		}

		if ctx.Err() != nil {
			return
		}
		for _, event := range decoder.Flush() {
			if !yield(event, nil) {
				return
			}
		}
	}
}
