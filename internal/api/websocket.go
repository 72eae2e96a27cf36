package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/automation-creator/internal/auth"
	"github.com/nerrad567/automation-creator/internal/infrastructure/config"
	"github.com/nerrad567/automation-creator/internal/infrastructure/logging"
	"github.com/nerrad567/automation-creator/internal/session"
)

// Events pushed to subscribed clients.
const (
	// EventSessionStateChanged carries a session.State on every change.
	EventSessionStateChanged = "session.state_changed"

	// EventSessionDeleted carries {"id": ...} once a session is closed.
	EventSessionDeleted = "session.deleted"
)

// Message types on the WebSocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBufferSize bounds the events queued for one client. A panel that
// falls this far behind misses events and resyncs on its next subscribe.
const wsSendBufferSize = 64

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects the sessions a client follows. An empty list
// on subscribe follows every session; on unsubscribe it stops all events.
type WSSubscribePayload struct {
	Sessions []string `json:"sessions,omitempty"`
}

// WSSubscribeAck answers a subscribe with the current state of the
// followed sessions, so a reconnecting panel does not wait for the next
// change to render.
type WSSubscribeAck struct {
	Sessions []string        `json:"sessions"`
	States   []session.State `json:"states"`
}

type sessionDeletedPayload struct {
	ID string `json:"id"`
}

// SnapshotFunc returns the current state of the given sessions, or of all
// sessions when ids is empty. Unknown ids are skipped.
type SnapshotFunc func(ids []string) []session.State

// Hub fans session events out to WebSocket clients.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	snapshot SnapshotFunc

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one connected panel.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// From the ticket the connection was opened with.
	subject string
	role    auth.Role

	mu         sync.RWMutex
	subscribed bool
	sessions   map[string]struct{} // empty follows all
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware owns origin policy.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates a hub. snapshot may be nil, in which case subscribe
// acknowledgements carry no states.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, snapshot SnapshotFunc) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		snapshot: snapshot,
		clients:  make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("panel connected", "subject", c.subject, "clients", n)
}

// Unregister removes a client. Safe to call more than once; the send
// channel is closed by whichever call removed the client.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("panel disconnected", "subject", c.subject, "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishState pushes a session state to the clients following it.
func (h *Hub) PublishState(st session.State) {
	h.publish(EventSessionStateChanged, st.ID, st)
}

// PublishDeleted tells the clients following a session that it is gone.
func (h *Hub) PublishDeleted(id string) {
	h.publish(EventSessionDeleted, id, sessionDeletedPayload{ID: id})
}

func (h *Hub) publish(event, sessionID string, payload any) {
	data, err := encodeFrame(WSMessage{Type: WSTypeEvent, EventType: event, Payload: payload})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.follows(sessionID) && c.trySend(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("session event pushed", "event", event, "session_id", sessionID, "clients", sent)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// handleWebSocket upgrades a request carrying a ticket from
// POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		subject:  entry.subject,
		role:     entry.role,
		sessions: make(map[string]struct{}),
	}
	s.hub.Register(c)

	go c.writeLoop()
	go c.readLoop()
}

func (c *WSClient) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // a failed deadline surfaces as a read error
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any frame counts.
		//nolint:errcheck // a failed deadline surfaces as a read error
		extend()
		c.handle(data)
	}
}

func (c *WSClient) writeLoop() {
	cfg := c.hub.cfg
	ping := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind = websocket.TextMessage
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				//nolint:errcheck // connection is closing anyway
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data = msg
		case <-ping.C:
			kind = websocket.PingMessage
		}

		//nolint:errcheck // write error is caught below
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var msg struct {
		Type    string             `json:"type"`
		ID      string             `json:"id"`
		Payload WSSubscribePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.subscribe(msg.ID, msg.Payload.Sessions)
	case WSTypeUnsubscribe:
		c.unsubscribe(msg.ID, msg.Payload.Sessions)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, errorPayload("unknown message type: "+msg.Type))
	}
}

func (c *WSClient) subscribe(id string, sessions []string) {
	if !auth.HasPermission(c.role, auth.PermSessionOperate) {
		c.reply(id, WSTypeError, errorPayload("insufficient permissions"))
		return
	}

	c.mu.Lock()
	if len(sessions) == 0 {
		c.sessions = make(map[string]struct{})
	}
	for _, sid := range sessions {
		c.sessions[sid] = struct{}{}
	}
	c.subscribed = true
	c.mu.Unlock()

	ack := WSSubscribeAck{Sessions: sessions, States: []session.State{}}
	if ack.Sessions == nil {
		ack.Sessions = []string{}
	}
	if c.hub.snapshot != nil {
		if states := c.hub.snapshot(sessions); states != nil {
			ack.States = states
		}
	}

	c.hub.logger.Debug("panel subscribed", "subject", c.subject, "sessions", sessions)
	c.reply(id, WSTypeResponse, ack)
}

func (c *WSClient) unsubscribe(id string, sessions []string) {
	c.mu.Lock()
	if len(sessions) == 0 {
		c.subscribed = false
		c.sessions = make(map[string]struct{})
	}
	for _, sid := range sessions {
		delete(c.sessions, sid)
	}
	c.mu.Unlock()

	c.reply(id, WSTypeResponse, map[string]any{"unsubscribed": sessions})
}

// follows reports whether events for sessionID go to this client.
func (c *WSClient) follows(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.subscribed {
		return false
	}
	if len(c.sessions) == 0 {
		return true
	}
	_, ok := c.sessions[sessionID]
	return ok
}

// trySend queues data without blocking. It reports false when the buffer
// is full or the client has already been unregistered.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := encodeFrame(WSMessage{Type: msgType, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.trySend(data)
}

func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}

// sessionSnapshot backs the hub's subscribe acknowledgements.
func (s *Server) sessionSnapshot(ids []string) []session.State {
	if len(ids) == 0 {
		return s.sessions.List()
	}
	states := make([]session.State, 0, len(ids))
	for _, id := range ids {
		ctrl, err := s.sessions.Get(id)
		if err != nil {
			continue
		}
		states = append(states, ctrl.State())
	}
	return states
}
