package websocket

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
)

const maxClientsPerSession = 10

var (
	ErrHubStopped         = errors.New("hub stopped")
	ErrTooManyConnections = fmt.Errorf("max console sockets per session (%d) reached", maxClientsPerSession)
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	sessionID string
	conn      *websocket.Conn
	reply     chan registerResult
}

type registerResult struct {
	client *Client
	err    error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	client *Client
}

func (cmdUnregister) hubCmd() {}

type cmdSend struct {
	client *Client
	msg    Message
}

func (cmdSend) hubCmd() {}

type cmdBroadcast struct {
	msg Message
}

func (cmdBroadcast) hubCmd() {}

type cmdClose struct {
	sessionID string
	client    *Client // nil closes every socket of sessionID
	final     *Message
}

func (cmdClose) hubCmd() {}

type cmdCount struct {
	sessionID string // empty counts all
	reply     chan int
}

func (cmdCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Hub ---

// Hub owns every console socket on this instance. All state lives in the run
// goroutine and is changed only through commands.
type Hub struct {
	cmdCh   chan hubCmd
	stopped chan struct{}
	clients map[string]map[*Client]struct{}
	metrics *metrics.WebSocketMetrics
}

func NewHub(m *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		stopped: make(chan struct{}),
		clients: make(map[string]map[*Client]struct{}),
		metrics: m,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.client)
		case cmdSend:
			h.deliver(c.client, c.msg)
		case cmdBroadcast:
			h.handleBroadcast(c.msg)
		case cmdClose:
			h.handleClose(c)
		case cmdCount:
			c.reply <- h.count(c.sessionID)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	clients, ok := h.clients[c.sessionID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.clients[c.sessionID] = clients
	}
	if len(clients) >= maxClientsPerSession {
		slog.Warn("Rejecting console socket, session at capacity", "max", maxClientsPerSession)
		_ = c.conn.Close()
		c.reply <- registerResult{err: ErrTooManyConnections}
		return
	}

	client := newClient(c.sessionID, c.conn)
	clients[client] = struct{}{}
	h.metrics.ActiveConnections.Inc()
	slog.Debug("Console socket registered", "session_sockets", len(clients))
	c.reply <- registerResult{client: client}
}

func (h *Hub) handleUnregister(client *Client) {
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	client.stop()
	delete(clients, client)
	h.metrics.ActiveConnections.Dec()
	if len(clients) == 0 {
		delete(h.clients, client.SessionID)
	}
}

// deliver drops clients that cannot keep up.
func (h *Hub) deliver(client *Client, msg Message) {
	if _, ok := h.clients[client.SessionID][client]; !ok {
		return
	}
	data, err := encode(msg)
	if err != nil {
		slog.Error("Failed to encode console message", "error", err)
		return
	}
	if client.enqueue(data) {
		h.metrics.MessagesPublished.WithLabelValues(msg.Type).Inc()
		return
	}

	select {
	case <-client.Done():
	default:
		slog.Warn("Disconnecting slow console socket", "type", msg.Type)
		h.metrics.SlowClientsClosed.Inc()
	}
	h.handleUnregister(client)
}

func (h *Hub) handleBroadcast(msg Message) {
	var all []*Client
	for _, clients := range h.clients {
		for client := range clients {
			all = append(all, client)
		}
	}
	for _, client := range all {
		h.deliver(client, msg)
	}
}

func (h *Hub) handleClose(c cmdClose) {
	clients := h.clients[c.sessionID]
	for client := range clients {
		if c.client != nil && client != c.client {
			continue
		}
		if c.final != nil {
			if data, err := encode(*c.final); err == nil && client.enqueue(data) {
				h.metrics.MessagesPublished.WithLabelValues(c.final.Type).Inc()
			}
		}
		client.closeAfterFlush()
		delete(clients, client)
		h.metrics.ActiveConnections.Dec()
	}
	if len(clients) == 0 {
		delete(h.clients, c.sessionID)
	}
}

func (h *Hub) count(sessionID string) int {
	if sessionID != "" {
		return len(h.clients[sessionID])
	}
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

func (h *Hub) handleStop() {
	close(h.stopped)
	for sessionID, clients := range h.clients {
		for client := range clients {
			client.stop()
			h.metrics.ActiveConnections.Dec()
		}
		delete(h.clients, sessionID)
	}
}

func (h *Hub) submit(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

// --- Public API ---

// Register adopts conn as a console socket for sessionID.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) (*Client, error) {
	reply := make(chan registerResult, 1)
	if !h.submit(cmdRegister{sessionID: sessionID, conn: conn, reply: reply}) {
		_ = conn.Close()
		return nil, ErrHubStopped
	}
	select {
	case r := <-reply:
		return r.client, r.err
	case <-h.stopped:
		_ = conn.Close()
		return nil, ErrHubStopped
	}
}

func (h *Hub) Unregister(client *Client) {
	h.submit(cmdUnregister{client: client})
}

// Send queues msg for one socket.
func (h *Hub) Send(client *Client, msg Message) {
	h.submit(cmdSend{client: client, msg: msg})
}

// Broadcast queues msg for every open socket.
func (h *Hub) Broadcast(msg Message) {
	h.submit(cmdBroadcast{msg: msg})
}

// CloseSession sends final (if non-nil) to every socket of sessionID and
// closes them once it is written.
func (h *Hub) CloseSession(sessionID string, final *Message) {
	h.submit(cmdClose{sessionID: sessionID, final: final})
}

// Close sends final (if non-nil) to client and closes it once written.
func (h *Hub) Close(client *Client, final *Message) {
	h.submit(cmdClose{sessionID: client.SessionID, client: client, final: final})
}

// ClientCount returns the sockets open for sessionID, or all sockets when
// sessionID is empty.
func (h *Hub) ClientCount(sessionID string) int {
	reply := make(chan int, 1)
	if !h.submit(cmdCount{sessionID: sessionID, reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.stopped:
		return 0
	}
}

func (h *Hub) Stop() {
	h.submit(cmdStop{})
}
