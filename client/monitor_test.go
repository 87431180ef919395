package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryDelay(t *testing.T) {
	m := NewMonitor(nil, MonitorConfig{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	})

	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second}, // 64s capped at max
		{20, 60 * time.Second},
	}
	for _, c := range cases {
		if got := m.RetryDelay(c.retry); got != c.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", c.retry, got, c.want)
		}
	}
}

func TestMonitorConnectNotifiesSubscribers(t *testing.T) {
	probe := func(ctx context.Context) error { return nil }
	m := NewMonitor(probe, MonitorConfig{
		ProbeInterval: time.Hour,
		InitialDelay:  time.Second,
		MaxDelay:      time.Second,
		Multiplier:    2.0,
	})
	events, cancel := m.Subscribe()
	defer cancel()

	go m.Start(context.Background())
	defer m.Stop()

	select {
	case ev := <-events:
		if !ev.Connected {
			t.Fatalf("first event = %+v, want connected", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event before timeout")
	}
	if !m.Connected() {
		t.Error("Connected() = false after successful probe")
	}
}

func TestMonitorTerminalFailure(t *testing.T) {
	probe := func(ctx context.Context) error { return errors.New("down") }
	m := NewMonitor(probe, MonitorConfig{
		ProbeInterval: time.Hour,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		Multiplier:    2.0,
		MaxRetries:    1,
	})
	events, cancel := m.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Start(context.Background())
		close(done)
	}()

	var sawCountdown bool
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Countdown > 0 {
				sawCountdown = true
			}
			if ev.Failure != "" {
				if ev.Connected {
					t.Errorf("terminal event claims connected: %+v", ev)
				}
				if !sawCountdown {
					t.Error("no countdown tick before terminal failure")
				}
				<-done
				if m.Failure() == "" {
					t.Error("Failure() empty after giving up")
				}
				return
			}
		case <-deadline:
			t.Fatal("no terminal failure before timeout")
		}
	}
}

func TestMonitorStopIdempotent(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error { return nil }, DefaultMonitorConfig())
	m.Stop()
	m.Stop() // must not panic
}
