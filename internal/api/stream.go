package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kjannette/ape-dashboard/internal/dashboard"
	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/kjannette/ape-dashboard/internal/metrics"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 40 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// origin policy is enforced by CORS_ALLOW_ORIGIN and the API key
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans rendered views out to stream clients. Each client holds only the
// latest undelivered view, so a slow reader skips frames instead of
// queueing them.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	log     *zap.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newHub() *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		log:     logger.Named("stream"),
	}
}

func (h *hub) publish(v dashboard.View) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal view", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.last = payload
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.offer(payload)
	}
}

// add registers c and queues the most recent view for it.
func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	last := h.last
	h.mu.Unlock()

	metrics.StreamClients.Inc()
	if last != nil {
		c.offer(last)
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		metrics.StreamClients.Dec()
	}
	c.close()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

// offer replaces any pending frame with payload.
func (c *client) offer(payload []byte) {
	for {
		select {
		case c.send <- payload:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}
	s.hub.add(c)
	s.log.Info("stream client connected", zap.String("client_id", c.id), zap.String("remote", r.RemoteAddr))

	go s.writeLoop(c)
	s.readLoop(c)

	s.hub.remove(c)
	s.log.Info("stream client disconnected", zap.String("client_id", c.id))
}

// readLoop discards client messages and keeps the read deadline moving on
// pongs. It returns when the connection fails or is closed.
func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.hub.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.remove(c)
				return
			}
		}
	}
}
