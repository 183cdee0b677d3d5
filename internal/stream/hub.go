package stream

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unklstewy/skytrail/internal/animation"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// HubConfig contains configuration for the WebSocket hub.
type HubConfig struct {
	// Encoder for outgoing frames (default JSON)
	Encoder Encoder

	// ClientBuffer is the per-client queue length (default 8)
	ClientBuffer int

	// FrameDivisor forwards every Nth frame of an interval (default 1)
	FrameDivisor int

	// AllowedOrigins for upgrades; empty or "*" allows any
	AllowedOrigins []string

	Logger *slog.Logger
}

// Hub fans frames out to WebSocket clients. It implements animation.Sink;
// Render never blocks, a client whose queue is full misses that frame.
type Hub struct {
	enc      Encoder
	buffer   int
	divisor  uint64
	origins  map[string]bool
	anyOrig  bool
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	latest  atomic.Pointer[[]byte]
	sent    atomic.Uint64
	dropped atomic.Uint64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub with no clients.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Encoder == nil {
		cfg.Encoder = jsonEncoder{}
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 8
	}
	if cfg.FrameDivisor <= 0 {
		cfg.FrameDivisor = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &Hub{
		enc:     cfg.Encoder,
		buffer:  cfg.ClientBuffer,
		divisor: uint64(cfg.FrameDivisor),
		origins: make(map[string]bool),
		logger:  cfg.Logger.With(slog.String("component", "stream")),
		clients: make(map[*client]struct{}),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			h.anyOrig = true
		}
		h.origins[o] = true
	}
	if len(cfg.AllowedOrigins) == 0 {
		h.anyOrig = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.anyOrig {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return h.origins[origin] || h.origins[u.Scheme+"://"+u.Host]
}

// Render encodes the frame once and queues it for every client.
func (h *Hub) Render(frame animation.Frame) {
	if frame.Sequence%h.divisor != 0 {
		return
	}

	data, err := h.enc.Encode(frame)
	if err != nil {
		h.logger.Error("failed to encode frame", slog.Any("error", err))
		return
	}
	h.latest.Store(&data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// ServeHTTP upgrades the request and streams frames until the client
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.buffer)}
	if latest := h.latest.Load(); latest != nil {
		c.send <- *latest
	}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.logger.Debug("client connected", slog.String("remote", r.RemoteAddr), slog.Int("clients", h.Clients()))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(h.enc.MessageType(), data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats counts delivered and dropped client messages.
type HubStats struct {
	Clients int    `json:"clients"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

// Stats returns delivery counters.
func (h *Hub) Stats() HubStats {
	return HubStats{Clients: h.Clients(), Sent: h.sent.Load(), Dropped: h.dropped.Load()}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
