package stream

import (
	"context"
	"io"
)

// Source delivers raw stream chunks. Each call to Chunks starts a new
// delivery; for network sources that means a new request, so a retry is
// simply another call.
type Source interface {
	Chunks(ctx context.Context) func(func(string, error) bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) func(func(string, error) bool)

func (f SourceFunc) Chunks(ctx context.Context) func(func(string, error) bool) {
	return f(ctx)
}

// Static returns a Source that replays chunks verbatim on every call.
func Static(chunks ...string) Source {
	return SourceFunc(func(ctx context.Context) func(func(string, error) bool) {
		return func(yield func(string, error) bool) {
			for _, chunk := range chunks {
				if ctx.Err() != nil {
					return
				}
				if !yield(chunk, nil) {
					return
				}
			}
		}
	})
}

const defaultReadSize = 4096

// Reader returns a Source that yields whatever r.Read returns. The reader
// can only be drained once; later calls yield nothing.
func Reader(r io.Reader) Source {
	return SourceFunc(func(ctx context.Context) func(func(string, error) bool) {
		return func(yield func(string, error) bool) {
			readChunks(ctx, r, yield)
		}
	})
}

func readChunks(ctx context.Context, r io.Reader, yield func(string, error) bool) {
	buffer := make([]byte, defaultReadSize)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := r.Read(buffer)
		if n > 0 {
			if !yield(string(buffer[:n]), nil) {
				return
			}
		}
		if err == io.EOF {
			return
		} else if err != nil {
			if ctx.Err() == nil {
				yield("", err)
			}
			return
		}
	}
}
