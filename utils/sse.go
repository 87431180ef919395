// utils/sse.go
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"sysmanage/common"
)

// EventStream pushes server-sent events to one client. Used by the command
// progress endpoint; events carry JSON payloads and are flushed eagerly so
// the browser sees lifecycle changes as they happen.
type EventStream struct {
	w  http.ResponseWriter
	fl http.Flusher
}

// NewEventStream prepares the response for server-sent events. Fails when
// the ResponseWriter cannot flush (no streaming through this middleware
// stack).
func NewEventStream(w http.ResponseWriter) (*EventStream, error) {
	fl, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering (nginx)
	w.Header().Set("X-Accel-Buffering", "no")
	return &EventStream{w: w, fl: fl}, nil
}

// Send emits one named event with a JSON-encoded payload.
func (s *EventStream) Send(event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	s.fl.Flush()
	return nil
}

// Keepalive emits an SSE comment so intermediaries keep the connection open.
func (s *EventStream) Keepalive() {
	_, _ = io.WriteString(s.w, ": keepalive\n\n")
	s.fl.Flush()
}

// WSUpgrader provides a configured websocket upgrader for the agent channel
var WSUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		// agents send no Origin; browsers must match the configured UI origin
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		ui := strings.TrimSpace(common.Env("SYSMANAGE_UI_ORIGIN", ""))
		if origin == "" || origin == ui {
			return true
		}
		// dev helpers
		if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
			return true
		}
		return false
	},
}
