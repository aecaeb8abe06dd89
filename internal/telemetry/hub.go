// Package telemetry streams controller frames to websocket clients, live
// from a running simulation or replayed from a stored session.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/flightcore/internal/monitoring"
)

var logger = monitoring.NewLogger("[telemetry] ")

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// Envelope is the wire format of every message: {type, ts, data}.
type Envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data into an envelope of the given type stamped at ts.
func Encode(msgType string, ts time.Time, data any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if !ts.IsZero() {
		ts = ts.UTC()
		env.Ts = &ts
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// HubConfig sizes the hub queues. Zero values use defaults.
type HubConfig struct {
	SendBuf      int // per-client outbound queue
	BroadcastBuf int // hub inbound queue
	// SlowLimit is how many messages in a row a client may miss because
	// its queue is full before it is disconnected.
	SlowLimit int
}

// Hub fans serialized messages out to connected clients. A client whose
// queue stays full is disconnected rather than slowing the others; a
// momentarily full queue only costs that client the message.
type Hub struct {
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf   int
	slowLimit int
	dropped   int
	missed    int
}

// NewHub constructs a hub. Call Run to start it.
func NewHub(cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 64
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 256
	}
	slowLimit := cfg.SlowLimit
	if slowLimit <= 0 {
		slowLimit = 32
	}
	return &Hub{
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
		slowLimit:  slowLimit,
	}
}

// Run processes hub events until ctx is cancelled, then disconnects every
// client. A Hub runs once.
func (h *Hub) Run(ctx context.Context) {
	logger.Diagf("hub starting")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			logger.Diagf("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Opsf("client %s connected (%d clients)", c.remoteAddr, n)

		case c := <-h.unregister:
			h.remove(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
					c.misses = 0
				default:
					h.missed++
					if c.misses++; c.misses >= h.slowLimit {
						slow = append(slow, c)
					}
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				h.remove(c, "slow client")
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close()
		logger.Opsf("client %s disconnected: %s (%d clients)", c.remoteAddr, reason, n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of messages discarded because the hub queue
// was full.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Missed returns the number of client deliveries skipped because a client
// queue was full.
func (h *Hub) Missed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.missed
}

// BroadcastBytes enqueues a serialized message. It never blocks; when the
// hub queue is full the message is dropped.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		logger.Tracef("broadcast queue full, dropping %d bytes", len(msg))
	}
}

// Broadcast encodes data as an envelope and enqueues it.
func (h *Hub) Broadcast(msgType string, data any) error {
	msg, err := Encode(msgType, time.Now(), data)
	if err != nil {
		return err
	}
	h.BroadcastBytes(msg)
	return nil
}

// Client is one websocket connection registered with a Hub.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	closeOnce  sync.Once
	misses     int // consecutive full-queue misses, guarded by hub.mu
}

func newClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
	}
}

// close stops the write pump. It is safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logWriteError(c.remoteAddr, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logWriteError(c.remoteAddr, err)
				return
			}
		}
	}
}

// readPump discards inbound messages so control frames are handled and a
// disconnect is noticed, then unregisters the client.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			select {
			case c.hub.unregister <- c:
			case <-c.hub.done:
				c.close()
			}
			return
		}
	}
}

func logWriteError(remote string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		logger.Diagf("client %s closed: %d %s", remote, ce.Code, ce.Text)
		return
	}
	logger.Diagf("client %s write failed: %v", remote, err)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and registers the connection. The first
// message a client receives is "hello".
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Diagf("upgrade failed: %v", err)
		return
	}
	c := newClient(h, conn, r.RemoteAddr)
	if hello, err := Encode("hello", time.Now(), nil); err == nil {
		c.send <- hello
	}
	select {
	case <-h.done:
		c.close()
		return
	default:
	}
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
		return
	}

	// Pumps outlive the handler; the request context ends when it returns.
	go c.writePump()
	go c.readPump()
}
