// monitor.go - backend reachability monitor with exponential backoff
package client

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Prober is the health check the monitor runs; Client.Healthz satisfies it.
type Prober func(ctx context.Context) error

// Event is pushed to subscribers as the monitor's state changes.
type Event struct {
	Connected bool `json:"connected"`
	// Countdown is the seconds remaining until the next retry, emitted once
	// per second while disconnected. Zero on state-change events.
	Countdown int    `json:"countdown,omitempty"`
	Retry     int    `json:"retry,omitempty"`
	Failure   string `json:"failure,omitempty"`
}

// MonitorConfig tunes the backoff schedule.
type MonitorConfig struct {
	ProbeInterval time.Duration // cadence while connected
	InitialDelay  time.Duration // first retry delay after a failure
	MaxDelay      time.Duration // backoff ceiling
	Multiplier    float64
	MaxRetries    int // retries before giving up; 0 means never
}

// DefaultMonitorConfig mirrors a conservative reconnect schedule.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ProbeInterval: 30 * time.Second,
		InitialDelay:  1 * time.Second,
		MaxDelay:      60 * time.Second,
		Multiplier:    2.0,
		MaxRetries:    10,
	}
}

// Monitor tracks whether the backend answers health probes. While healthy it
// re-probes on a fixed cadence; after a failure it retries with exponential
// backoff, ticking the countdown to subscribers once per second.
type Monitor struct {
	cfg   MonitorConfig
	probe Prober

	mu         sync.Mutex
	connected  bool
	retryCount int
	failure    string
	subs       map[int]chan Event
	nextSub    int

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMonitor builds a monitor around a probe func. Call Start to run it.
func NewMonitor(probe Prober, cfg MonitorConfig) *Monitor {
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	return &Monitor{
		cfg:    cfg,
		probe:  probe,
		subs:   make(map[int]chan Event),
		stopCh: make(chan struct{}),
	}
}

// Connected reports the current state.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Failure returns the terminal failure string, if the monitor gave up.
func (m *Monitor) Failure() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Subscribe registers for state and countdown events. The returned cancel
// func releases the subscription.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
	return ch, cancel
}

// Stop halts the monitor. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// RetryDelay computes the backoff delay for the given retry count:
// min(initialDelay * multiplier^retryCount, maxDelay).
func (m *Monitor) RetryDelay(retryCount int) time.Duration {
	d := time.Duration(float64(m.cfg.InitialDelay) * math.Pow(m.cfg.Multiplier, float64(retryCount)))
	if d > m.cfg.MaxDelay || d <= 0 {
		return m.cfg.MaxDelay
	}
	return d
}

// Start runs the monitor until Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		default:
		}

		if err := m.probe(ctx); err != nil {
			if !m.handleFailure(ctx, err) {
				return
			}
			continue
		}
		m.setConnected(true)

		select {
		case <-time.After(m.cfg.ProbeInterval):
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		}
	}
}

// handleFailure runs the backoff countdown. Returns false when the monitor
// should stop (terminal failure or cancellation).
func (m *Monitor) handleFailure(ctx context.Context, err error) bool {
	m.setConnected(false)

	m.mu.Lock()
	retry := m.retryCount
	m.retryCount++
	m.mu.Unlock()

	if m.cfg.MaxRetries > 0 && retry >= m.cfg.MaxRetries {
		msg := fmt.Sprintf("connection failed after %d retries: %v", m.cfg.MaxRetries, err)
		m.mu.Lock()
		m.failure = msg
		m.mu.Unlock()
		m.broadcast(Event{Connected: false, Retry: retry, Failure: msg})
		return false
	}

	delay := m.RetryDelay(retry)
	remaining := int(math.Ceil(delay.Seconds()))

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for remaining > 0 {
		m.broadcast(Event{Connected: false, Countdown: remaining, Retry: retry + 1})
		select {
		case <-tick.C:
			remaining--
		case <-ctx.Done():
			return false
		case <-m.stopCh:
			return false
		}
	}
	return true
}

func (m *Monitor) setConnected(up bool) {
	m.mu.Lock()
	changed := m.connected != up
	m.connected = up
	if up {
		m.retryCount = 0
		m.failure = ""
	}
	m.mu.Unlock()
	if changed {
		m.broadcast(Event{Connected: up})
	}
}

func (m *Monitor) broadcast(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
