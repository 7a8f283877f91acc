package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

func dialTarget(t *testing.T, h *handler) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, srv
}

func TestEchoMode(t *testing.T) {
	h, err := newHandler(modeEcho, 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	conn, _ := dialTarget(t, h)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q, want hello", data)
	}
}

func TestJSONModeWrapsFrames(t *testing.T) {
	h, err := newHandler(modeJSON, 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	conn, _ := dialTarget(t, h)

	tests := []struct{ send, want string }{
		{"a", `{"seq":1,"data":"a"}`},
		{"b", `{"seq":2,"data":"b"}`},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
			t.Fatal(err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != tt.want {
			t.Errorf("got %s, want %s", data, tt.want)
		}
	}
}

func TestRejectEvery(t *testing.T) {
	h, err := newHandler(modeSink, 2, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	_, srv := dialTarget(t, h)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err == nil {
		t.Fatal("expected second handshake to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}

func TestNewHandlerRejectsUnknownMode(t *testing.T) {
	if _, err := newHandler("grpc", 0, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := newHandler(modeEcho, -1, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for negative reject-every")
	}
}
