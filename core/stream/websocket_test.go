package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-lesson/core/events"
)

func TestWebSocketSourceYieldsMessagesAsChunks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		_, request, err := conn.ReadMessage()
		if err != nil || string(request) != `{"topic":"vectors"}` {
			t.Errorf("expected lesson request, got %q (%v)", request, err)
			return
		}

		for _, part := range []string{`{"type":"speak","speak":{"text":"hi"`, `}}` + "\n" + `{"type":"done"}` + "\n"} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(part)); err != nil {
				t.Errorf("write failed: %v", err)
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer server.Close()

	src := NewWebSocketSource("ws" + strings.TrimPrefix(server.URL, "http"))
	src.Request = []byte(`{"topic":"vectors"}`)

	var decoded []events.Event
	for event, err := range Decode(context.Background(), src) {
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		decoded = append(decoded, event)
	}

	if len(decoded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(decoded))
	}
	if got := decoded[0].(events.Speak).Text; got != "hi" {
		t.Fatalf("expected speak text %q, got %q", "hi", got)
	}
	if decoded[1].Kind() != events.KindDone {
		t.Fatalf("expected done event last, got %q", decoded[1].Kind())
	}
}
