package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/vidembed/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Buffered messages per client before it is dropped.
	sendBuffer = 16
)

// Client is one connected browser
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks live reload clients
type Hub struct {
	clients map[*Client]struct{}
	mutex   sync.RWMutex
	logger  logging.Logger
}

// NewHub creates an empty hub
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) add(c *Client) {
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()
	h.logger.Debug(context.Background(), "Client connected", "total", count)
}

// remove drops c and closes its send channel. Removing twice is a no-op.
func (h *Hub) remove(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for every client. Clients whose buffer is full
// are disconnected.
func (h *Hub) Broadcast(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Debug(context.Background(), "Dropped slow client")
		}
	}
}

// CloseAll disconnects every client
func (h *Hub) CloseAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(client)
	defer s.hub.remove(client)

	// Browsers never send anything; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	s.writePump(ctx, client)
}

func (s *PreviewServer) writePump(ctx context.Context, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "")
			return

		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "server closing")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				s.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// originPatterns allows pages served by this server plus local hosts on any
// port.
func (s *PreviewServer) originPatterns() []string {
	patterns := []string{"localhost:*", "127.0.0.1:*"}
	if host, _, err := net.SplitHostPort(s.opts.Address); err == nil && host != "" {
		patterns = append(patterns, host+":*")
	}
	return patterns
}
