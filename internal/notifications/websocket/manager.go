package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types exchanged with realtime clients
const (
	MessageTypeEvent     = "event"
	MessageTypeStatus    = "status"
	MessageTypeSubscribe = "subscribe"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Message is the envelope written to realtime clients
type Message struct {
	Type      string         `json:"type"`
	Kind      string         `json:"kind,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Manager keeps realtime connections per user and fans event messages out to them.
// UI layers subscribe here and re-derive their view from the event stream.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closed      bool
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan Message

	mu           sync.Mutex
	taskIDs      map[string]bool
	lastActivity time.Time
	closeOnce    sync.Once
}

// NewManager creates a new WebSocket manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and registers the connection for userID
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan Message, sendBuffer),
		taskIDs:      make(map[string]bool),
		lastActivity: time.Now(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("websocket manager closed")
	}
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	m.logger.Debug("Realtime connection registered",
		zap.String("connection_id", connection.ID),
		zap.String("user_id", userID))

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	if _, ok := m.connections[conn.ID]; ok {
		delete(m.connections, conn.ID)
	}
	m.mu.Unlock()
	conn.closeOnce.Do(func() { close(conn.Send) })
}

// readPump reads subscription updates until the client goes away
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.unregister(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("Realtime connection closed unexpectedly",
					zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}

		conn.mu.Lock()
		conn.lastActivity = time.Now()
		if msg.Type == MessageTypeSubscribe && msg.TaskID != "" {
			conn.taskIDs[msg.TaskID] = true
		}
		conn.mu.Unlock()

		m.enqueue(conn, Message{
			Type:      MessageTypeStatus,
			Data:      map[string]any{"status": "subscribed", "connection_id": conn.ID},
			Timestamp: time.Now(),
		})
	}
}

// writePump writes queued messages and keeps the connection alive with pings
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) enqueue(conn *Connection, message Message) bool {
	defer func() {
		// Send may be closed by a concurrent unregister.
		_ = recover()
	}()
	select {
	case conn.Send <- message:
		return true
	default:
		return false
	}
}

// SendToUser delivers a message to every connection of userID and to every
// connection subscribed to the message's task.
func (m *Manager) SendToUser(userID string, message Message) error {
	m.mu.RLock()
	targets := make([]*Connection, 0)
	for _, conn := range m.connections {
		if conn.UserID == userID || conn.watches(message.TaskID) {
			targets = append(targets, conn)
		}
	}
	m.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	delivered := 0
	for _, conn := range targets {
		if m.enqueue(conn, message) {
			delivered++
		}
	}
	if delivered == 0 {
		return fmt.Errorf("realtime buffers full for user %s", userID)
	}
	return nil
}

func (c *Connection) watches(taskID string) bool {
	if taskID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskIDs[taskID]
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close closes the WebSocket manager and all connections
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.connections = make(map[string]*Connection)
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
}
