package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEventStreamSend(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := NewEventStream(rec)
	if err != nil {
		t.Fatalf("NewEventStream: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("cache-control = %q", cc)
	}

	ev := struct {
		CommandID string `json:"command_id"`
		Status    string `json:"status"`
	}{CommandID: "cmd-1", Status: "sent"}
	if err := stream.Send("command", ev); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := "event: command\ndata: {\"command_id\":\"cmd-1\",\"status\":\"sent\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("event was not flushed")
	}
}

func TestEventStreamKeepalive(t *testing.T) {
	rec := httptest.NewRecorder()
	stream, err := NewEventStream(rec)
	if err != nil {
		t.Fatalf("NewEventStream: %v", err)
	}
	stream.Keepalive()
	if got := rec.Body.String(); !strings.HasPrefix(got, ": keepalive\n\n") {
		t.Errorf("keepalive frame = %q", got)
	}
}

type noFlushWriter struct {
	http.ResponseWriter
}

func TestEventStreamRequiresFlusher(t *testing.T) {
	if _, err := NewEventStream(noFlushWriter{httptest.NewRecorder()}); err == nil {
		t.Fatal("expected error for a ResponseWriter without Flush")
	}
}
