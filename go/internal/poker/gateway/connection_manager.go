package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rfontan/pointly/go/internal/poker/events"
)

// Authorizer checks that a user may join a project's room. The poker App
// satisfies it; tests inject a stub.
type Authorizer interface {
	Authorize(ctx context.Context, projectID, userID uuid.UUID) error
}

// ConnectionManager is the room broadcaster: it maps each project ID to the
// set of live connections subscribed to that project's events and fans
// state-changing events out to all of them. It holds only connections, never
// session data; the store stays the single owner of issue state.
type ConnectionManager struct {
	// Connection pools organized by project ID ("rooms")
	rooms map[uuid.UUID]map[*Connection]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	auth     Authorizer

	broadcastCh chan *events.Event
}

// Connection represents a WebSocket connection to a client. A connection is
// bound to exactly one room at a time; a joinRoom client message re-binds it.
type Connection struct {
	ID        string
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time

	// sendMu guards closed so a broadcast holding a stale room snapshot can
	// never send on a channel that leave already closed.
	sendMu sync.Mutex
	closed bool
}

// trySend queues data for the write pump. It reports false when the
// connection is already closed or its buffer is full.
func (c *Connection) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once.
func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new room broadcaster.
func NewConnectionManager(config ConnectionConfig, auth Authorizer) *ConnectionManager {
	return &ConnectionManager{
		rooms: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		auth:        auth,
		broadcastCh: make(chan *events.Event, 1000),
	}
}

// Start begins processing broadcast messages until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("room broadcaster started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room broadcaster shutting down")
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket and joins the
// connection to the project's room. Membership must already be verified by
// the caller.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID, projectID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProjectID:   projectID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.join(connection, projectID)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Str("project_id", projectID.String()).
		Msg("WebSocket connection established")

	return nil
}

// join adds a connection to a project's room, removing it from its previous
// room if it had one.
func (cm *ConnectionManager) join(conn *Connection, projectID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.removeLocked(conn, false)

	conn.ProjectID = projectID
	if cm.rooms[projectID] == nil {
		cm.rooms[projectID] = make(map[*Connection]bool)
	}
	cm.rooms[projectID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("project_id", projectID.String()).
		Int("room_size", len(cm.rooms[projectID])).
		Msg("connection joined room")
}

// leave removes a connection from its room and closes its send channel. It
// fires on explicit disconnect and implicitly when either pump tears down
// after a connection loss, so rooms never accumulate dead members.
func (cm *ConnectionManager) leave(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeLocked(conn, true)
}

func (cm *ConnectionManager) removeLocked(conn *Connection, closeSend bool) {
	room, exists := cm.rooms[conn.ProjectID]
	if !exists || !room[conn] {
		return
	}
	delete(room, conn)
	if closeSend {
		conn.closeSend()
	}

	// Drop empty rooms so the map does not grow with idle projects.
	if len(room) == 0 {
		delete(cm.rooms, conn.ProjectID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Str("project_id", conn.ProjectID.String()).
		Msg("connection left room")
}

// BroadcastToProject queues an event for delivery to every connection in the
// project's room, the acting client included. Best-effort: if the broadcast
// queue is full the event is dropped with a warning, and the next full
// snapshot re-synchronizes clients.
func (cm *ConnectionManager) BroadcastToProject(event *events.Event) {
	select {
	case cm.broadcastCh <- event:
	default:
		log.Warn().
			Str("project_id", event.ProjectID).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping event")
	}
}

// handleBroadcast delivers one event to the members of its project's room.
func (cm *ConnectionManager) handleBroadcast(event *events.Event) {
	projectID, err := uuid.Parse(event.ProjectID)
	if err != nil {
		log.Error().Err(err).Str("project_id", event.ProjectID).Msg("event carries invalid project ID")
		return
	}

	cm.mu.RLock()
	room, exists := cm.rooms[projectID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(room))
	for conn := range room {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if conn.trySend(data) {
			continue
		}
		// Slow, dead or already departed consumer; disconnect it rather than
		// block the room.
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID.String()).
			Msg("connection cannot take event, closing connection")
		cm.leave(conn)
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("project_id", event.ProjectID).
		Int("connections", len(targets)).
		Msg("event broadcast to room")
}

// Stats returns per-room connection counts.
func (cm *ConnectionManager) Stats() (total int, rooms map[string]int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	rooms = make(map[string]int, len(cm.rooms))
	for projectID, room := range cm.rooms {
		rooms[projectID.String()] = len(room)
		total += len(room)
	}
	return total, rooms
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.leave(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// ClientMessage is the small command envelope clients may send on the socket.
type ClientMessage struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id,omitempty"`
}

// handleClientMessage processes messages received from the client. The only
// supported command is joinRoom, which re-binds the connection to another
// project's room after a membership check.
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case "joinRoom":
		projectID, err := uuid.Parse(msg.ProjectID)
		if err != nil {
			log.Debug().
				Str("connection_id", c.ID).
				Str("project_id", msg.ProjectID).
				Msg("joinRoom with invalid project ID")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Manager.auth.Authorize(ctx, projectID, c.UserID); err != nil {
			log.Warn().
				Str("connection_id", c.ID).
				Str("user_id", c.UserID.String()).
				Str("project_id", projectID.String()).
				Msg("joinRoom denied")
			return
		}
		c.Manager.join(c, projectID)

	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("message_type", msg.Type).
			Msg("ignoring unknown client message")
	}
}
