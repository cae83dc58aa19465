package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// WebSocketSource streams a lesson over a websocket. Every text or binary
// message is one chunk; messages need not align with record boundaries.
type WebSocketSource struct {
	URL    string
	Header http.Header
	// Request, when set, is written as the first text message after the
	// connection opens.
	Request []byte
	Dialer  *websocket.Dialer
}

func NewWebSocketSource(url string) *WebSocketSource {
	return &WebSocketSource{URL: url}
}

func (s *WebSocketSource) Chunks(ctx context.Context) func(func(string, error) bool) {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "stream lesson over websocket")
		defer span.End()
		span.SetAttributes(attribute.String("request.url", s.URL))

		dialer := s.Dialer
		if dialer == nil {
			dialer = websocket.DefaultDialer
		}

		conn, _, err := dialer.DialContext(ctx, s.URL, s.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			err = fmt.Errorf("failed to open websocket: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}
		defer conn.Close()

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close() // Unblocks ReadMessage
			case <-stop:
			}
		}()

		if len(s.Request) > 0 {
			if err := conn.WriteMessage(websocket.TextMessage, s.Request); err != nil {
				err = fmt.Errorf("failed to send lesson request: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", err)
				return
			}
		}

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
					return
				}
				err = fmt.Errorf("websocket read error: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", err)
				return
			}

			if !yield(string(msg), nil) {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) // Ignored on purpose
				return
			}
		}
	}
}
