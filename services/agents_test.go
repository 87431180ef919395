package services

import (
	"testing"
	"time"

	"sysmanage/database"
)

func newTestHub() *AgentHub {
	return &AgentHub{
		conns:    make(map[string]*agentConn),
		watchers: make(map[string]map[chan CommandEvent]struct{}),
	}
}

func newTestConn(hostID string) *agentConn {
	return &agentConn{
		hostID: hostID,
		send:   make(chan AgentMessage, 32),
		done:   make(chan struct{}),
	}
}

func TestAgentConnShutdownIdempotent(t *testing.T) {
	ac := newTestConn("h1")
	ac.shutdown()
	ac.shutdown() // second call must not panic

	select {
	case <-ac.done:
	default:
		t.Fatal("done channel not closed after shutdown")
	}
}

func TestAdoptSupersedesOldConnection(t *testing.T) {
	h := newTestHub()
	first := newTestConn("h1")
	second := newTestConn("h1")

	h.adopt(first)
	h.adopt(second)

	select {
	case <-first.done:
	default:
		t.Fatal("superseded connection was not shut down")
	}
	// The superseded handler's own deferred cleanup runs after the takeover.
	h.drop(first)

	if !h.Connected("h1") {
		t.Fatal("host should still be connected via the new socket")
	}
	h.mu.RLock()
	cur := h.conns["h1"]
	h.mu.RUnlock()
	if cur != second {
		t.Fatal("stale connection displaced the superseding one")
	}

	h.drop(second)
	if h.Connected("h1") {
		t.Fatal("host still connected after dropping the live socket")
	}
}

func TestCommandTimeoutReachesWatchers(t *testing.T) {
	ch, cancel := Agents.WatchCommand("cmd-timeout-1")
	defer cancel()

	notifyCommandTimeouts([]string{"cmd-timeout-1"})

	select {
	case ev := <-ch:
		if ev.Status != database.CommandTimeout {
			t.Fatalf("status = %q, want %q", ev.Status, database.CommandTimeout)
		}
		if !TerminalCommandStatus(ev.Status) {
			t.Fatal("timeout must be terminal so streams close")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered for timed-out command")
	}
}

func TestTerminalCommandStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{database.CommandQueued, false},
		{database.CommandSent, false},
		{database.CommandSucceeded, true},
		{database.CommandFailed, true},
		{database.CommandTimeout, true},
	}
	for _, tc := range tests {
		if got := TerminalCommandStatus(tc.status); got != tc.want {
			t.Errorf("TerminalCommandStatus(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
