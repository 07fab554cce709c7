// Package ws fans sync and listener events out to websocket clients.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

const (
	clientBuffer = 64
	writeTimeout = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster is an EventSink that writes every event to all connected
// clients. A client that cannot keep up is disconnected.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	logger  *logging.Logger
	now     func() time.Time
}

var _ ports.EventSink = (*Broadcaster)(nil)

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broadcaster{
		clients: make(map[*client]bool),
		logger:  logger,
		now:     time.Now,
	}
}

// AddClient starts writing events to conn.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	return c
}

// RemoveClient stops writing to c and closes its connection. It is safe to
// call more than once.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Publish implements ports.EventSink.
func (b *Broadcaster) Publish(evt syncdomain.Event) {
	if evt == nil {
		return
	}
	data, err := json.Marshal(NewMessage(evt, b.now()))
	if err != nil {
		b.logger.Error("broadcast marshal failed", "kind", evt.Kind(), "error", err.Error())
		return
	}
	b.broadcast(data)
}

func (b *Broadcaster) broadcast(data []byte) {
	// Sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("ws client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
		b.RemoveClient(c)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
}
