package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/voice"
)

// ErrClientClosed is returned by Send after the connection was closed.
var ErrClientClosed = voice.ErrClientClosed

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 4 * 1024 * 1024
)

// Client is one voice websocket connection. Send is safe for concurrent
// use; reads happen on the connection's own loop.
type Client struct {
	ConnID      string
	SessionID   string
	Socket      *websocket.Conn
	AuthResult  AuthResult
	RemoteAddr  string
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, authResult AuthResult, remoteAddr string) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		Socket:      conn,
		AuthResult:  authResult,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}
}

// Send writes v as a JSON text frame.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	_ = c.Socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Socket.WriteJSON(v)
}

// ReadMessage reads the next frame and its websocket message type.
func (c *Client) ReadMessage() (int, []byte, error) {
	return c.Socket.ReadMessage()
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.Socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.Socket.Close()
}

// ClientRegistry tracks open voice connections.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("remote", c.RemoteAddr).Msg("client connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Get returns a client by connection ID.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every connection. Their read loops then end the sessions.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		_ = c.Close()
		delete(r.clients, id)
	}
}
