package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sysmanage/common"
	"sysmanage/database"
)

// Message types on the agent websocket channel.
const (
	MsgHeartbeat     = "heartbeat"
	MsgReport        = "report"
	MsgCommand       = "command"
	MsgCommandResult = "command_result"
)

// AgentMessage is the envelope for both directions of the agent channel.
type AgentMessage struct {
	Type        string          `json:"type"`
	CommandID   string          `json:"command_id,omitempty"`
	CommandType string          `json:"command_type,omitempty"`
	ReportKind  string          `json:"report_kind,omitempty"`
	Success     bool            `json:"success,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// CommandEvent is pushed to watchers as a command moves through its
// lifecycle (sent, succeeded, failed, timeout).
type CommandEvent struct {
	CommandID string         `json:"command_id"`
	Status    string         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
}

// TerminalCommandStatus reports whether a command status is final: no
// further lifecycle events will follow succeeded, failed or timeout.
func TerminalCommandStatus(status string) bool {
	switch status {
	case database.CommandSucceeded, database.CommandFailed, database.CommandTimeout:
		return true
	}
	return false
}

type agentConn struct {
	hostID    string
	ws        *websocket.Conn
	send      chan AgentMessage
	done      chan struct{}
	closeOnce sync.Once
}

// shutdown stops the connection's loops. Both the owning handler and a
// superseding reconnect call this, so it must be safe to call twice.
func (c *agentConn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// AgentHub tracks connected agents and routes commands and results.
type AgentHub struct {
	mu       sync.RWMutex
	conns    map[string]*agentConn
	watchers map[string]map[chan CommandEvent]struct{}
}

// Agents is the shared hub instance.
var Agents = &AgentHub{
	conns:    make(map[string]*agentConn),
	watchers: make(map[string]map[chan CommandEvent]struct{}),
}

var ErrAgentOffline = errors.New("agent not connected")

// Connected reports whether a host's agent currently holds a connection.
func (h *AgentHub) Connected(hostID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[hostID]
	return ok
}

// ConnectedHosts returns the ids of hosts with live agent connections.
func (h *AgentHub) ConnectedHosts() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.conns))
	for id := range h.conns {
		out = append(out, id)
	}
	return out
}

// HandleAgentSocket owns an agent connection until it drops. It flushes any
// queued commands on connect, then serves the read loop.
func (h *AgentHub) HandleAgentSocket(ctx context.Context, ws *websocket.Conn, hostID string) {
	ac := &agentConn{
		hostID: hostID,
		ws:     ws,
		send:   make(chan AgentMessage, 32),
		done:   make(chan struct{}),
	}

	h.adopt(ac)

	common.InfoLog("agent: connected host=%s", hostID)
	defer func() {
		h.drop(ac)
		common.InfoLog("agent: disconnected host=%s", hostID)
	}()

	go ac.writeLoop()

	if err := h.flushQueued(ctx, ac); err != nil {
		common.ErrorLog("agent: flush queued commands failed host=%s: %v", hostID, err)
	}

	for {
		var msg AgentMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				common.DebugLog("agent: read error host=%s: %v", hostID, err)
			}
			return
		}
		if err := h.handleMessage(ctx, hostID, msg); err != nil {
			common.ErrorLog("agent: message %s failed host=%s: %v", msg.Type, hostID, err)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// adopt registers the connection as the host's single live channel. A
// reconnect supersedes the old socket; shutting it down unblocks the
// superseded handler, whose deferred cleanup must stay a no-op here.
func (h *AgentHub) adopt(ac *agentConn) {
	h.mu.Lock()
	if old, ok := h.conns[ac.hostID]; ok {
		old.shutdown()
	}
	h.conns[ac.hostID] = ac
	h.mu.Unlock()
}

// drop unregisters the connection unless a newer one already replaced it.
func (h *AgentHub) drop(ac *agentConn) {
	h.mu.Lock()
	if h.conns[ac.hostID] == ac {
		delete(h.conns, ac.hostID)
	}
	h.mu.Unlock()
	ac.shutdown()
}

func (c *agentConn) writeLoop() {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case msg := <-c.send:
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *AgentHub) handleMessage(ctx context.Context, hostID string, msg AgentMessage) error {
	switch msg.Type {
	case MsgHeartbeat:
		var hb struct {
			OSDetails map[string]any `json:"os_details,omitempty"`
		}
		_ = json.Unmarshal(msg.Payload, &hb)
		return database.TouchHost(ctx, hostID, hb.OSDetails)

	case MsgReport:
		if err := database.TouchHost(ctx, hostID, nil); err != nil {
			return err
		}
		return ApplyReport(ctx, hostID, msg.ReportKind, msg.Payload)

	case MsgCommandResult:
		var result map[string]any
		_ = json.Unmarshal(msg.Payload, &result)
		return h.completeCommand(ctx, msg.CommandID, msg.Success, result)

	default:
		common.WarnLog("agent: unknown message type %q host=%s", msg.Type, hostID)
		return nil
	}
}

// DispatchCommand queues a command and delivers it immediately when the
// agent is online. Offline agents receive it on their next connect.
func (h *AgentHub) DispatchCommand(ctx context.Context, hostID, commandType string, payload map[string]any, createdBy string) (string, error) {
	id, err := database.InsertCommand(ctx, hostID, commandType, payload, createdBy)
	if err != nil {
		return "", err
	}

	h.mu.RLock()
	ac, online := h.conns[hostID]
	h.mu.RUnlock()
	if !online {
		common.DebugLog("agent: command %s queued for offline host=%s", id, hostID)
		return id, nil
	}

	payloadB, _ := json.Marshal(payload)
	select {
	case ac.send <- AgentMessage{Type: MsgCommand, CommandID: id, CommandType: commandType, Payload: payloadB}:
		if err := database.MarkCommandSent(ctx, id); err != nil {
			return id, err
		}
		h.notify(CommandEvent{CommandID: id, Status: database.CommandSent})
	default:
		// Send buffer full; the command stays queued for the flush path.
		common.WarnLog("agent: send buffer full host=%s, command %s left queued", hostID, id)
	}
	return id, nil
}

func (h *AgentHub) flushQueued(ctx context.Context, ac *agentConn) error {
	queued, err := database.ListQueuedCommands(ctx, ac.hostID)
	if err != nil {
		return err
	}
	for _, c := range queued {
		payloadB, _ := json.Marshal(c.Payload)
		select {
		case ac.send <- AgentMessage{Type: MsgCommand, CommandID: c.ID, CommandType: c.CommandType, Payload: payloadB}:
			if err := database.MarkCommandSent(ctx, c.ID); err != nil {
				return err
			}
			h.notify(CommandEvent{CommandID: c.ID, Status: database.CommandSent})
		case <-ac.done:
			return nil
		}
	}
	return nil
}

func (h *AgentHub) completeCommand(ctx context.Context, commandID string, success bool, result map[string]any) error {
	if err := database.CompleteCommand(ctx, commandID, success, result); err != nil {
		return err
	}
	status := database.CommandSucceeded
	if !success {
		status = database.CommandFailed
	}
	h.notify(CommandEvent{CommandID: commandID, Status: status, Result: result})

	// Lifecycle hooks keyed on the command type.
	cmd, err := database.GetCommand(ctx, commandID)
	if err != nil {
		return err
	}
	return applyCommandHooks(ctx, cmd, success, result)
}

// WatchCommand subscribes to lifecycle events for one command. The cancel
// func must be called to release the subscription.
func (h *AgentHub) WatchCommand(commandID string) (<-chan CommandEvent, func()) {
	ch := make(chan CommandEvent, 8)
	h.mu.Lock()
	if h.watchers[commandID] == nil {
		h.watchers[commandID] = make(map[chan CommandEvent]struct{})
	}
	h.watchers[commandID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.watchers[commandID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.watchers, commandID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *AgentHub) notify(ev CommandEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.watchers[ev.CommandID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
