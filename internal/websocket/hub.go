// Package websocket pushes alert and anomaly events to live subscribers.
// Clients connect through the HTTP handler, optionally narrowing what they
// receive to one metric or severity, and the hub fans every published event
// out to the clients whose filters it passes.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vigil/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512

	sendQueueSize      = 64
	broadcastQueueSize = 256
)

// Event is the wire format pushed to subscribers. Metrics and Severity carry
// the attributes client filters match against; Data holds the full record.
type Event struct {
	Type      string      `json:"type"`
	Metrics   []string    `json:"metrics,omitempty"`
	Severity  string      `json:"severity,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Client is one subscriber connection. Filters are mutable through
// subscribe messages, so reads and writes go through the mutex.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan Event
	hub  *Hub

	mu       sync.Mutex
	metric   string
	severity string
	closed   bool
}

func newClient(id string, conn *websocket.Conn, hub *Hub, metric, severity string) *Client {
	return &Client{
		id:       id,
		conn:     conn,
		send:     make(chan Event, sendQueueSize),
		hub:      hub,
		metric:   metric,
		severity: severity,
	}
}

// close shuts the send queue and the connection exactly once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// trySend queues an event without blocking. Returns false when the client is
// closed or its queue is full.
func (c *Client) trySend(event Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// wants reports whether the event passes the client's filters. A filter only
// applies when both the preference and the event attribute are set, so
// system events and unclassified records always go through.
func (c *Client) wants(event *Event) bool {
	if event.Type == EventConnected || event.Type == EventPong {
		return true
	}

	c.mu.Lock()
	metric, severity := c.metric, c.severity
	c.mu.Unlock()

	if metric != "" && len(event.Metrics) > 0 && !containsMetric(event.Metrics, metric) {
		return false
	}
	if severity != "" && event.Severity != "" && severity != event.Severity {
		return false
	}
	return true
}

func containsMetric(metrics []string, name string) bool {
	for _, m := range metrics {
		if m == name {
			return true
		}
	}
	return false
}

// Hub fans published events out to registered clients. Clients that cannot
// keep up are dropped rather than allowed to stall the broadcast loop.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
	logger     logging.Logger
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, broadcastQueueSize),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("websocket"),
	}
}

// Run services registrations and broadcasts until the context is canceled,
// then closes every remaining client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			client.close()
		}
		h.clients = make(map[*Client]bool)
		h.mu.Unlock()
		close(h.done)
		h.logger.Info("websocket hub stopped")
	}()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client registered", "client_id", client.id, "total", total)

			welcome := Event{
				Type:      EventConnected,
				Timestamp: time.Now().UTC(),
				Data:      map[string]string{"client_id": client.id},
			}
			if !client.trySend(welcome) {
				h.drop(client)
			}

		case client := <-h.unregister:
			h.drop(client)

		case event := <-h.broadcast:
			var stalled []*Client
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(&event) {
					continue
				}
				if !client.trySend(event) {
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range stalled {
				h.drop(client)
			}

		case <-ctx.Done():
			return
		}
	}
}

// drop removes and closes a client. Safe to call for already removed clients.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.close()
	h.logger.Debug("websocket client dropped", "client_id", client.id, "total", len(h.clients))
}

// RegisterClient hands a new client to the run loop.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// UnregisterClient asks the run loop to drop a client.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues an event for delivery. Drops the event with a warning if
// the queue is full; subscribers can always re-read state over the REST API.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event", "type", event.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type clientMessage struct {
	Type     string `json:"type"`
	Metric   string `json:"metric"`
	Severity string `json:"severity"`
}

// writePump drains the send queue onto the connection and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.hub.done:
			return
		}
	}
}

// readPump consumes subscription messages until the connection drops, then
// unregisters the client.
func (c *Client) readPump() {
	defer c.hub.UnregisterClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}
		c.handleMessage(msg)
	}
}

// handleMessage applies a subscription change or answers a ping.
func (c *Client) handleMessage(msg clientMessage) {
	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		if msg.Metric != "" {
			c.metric = msg.Metric
		}
		if msg.Severity != "" {
			c.severity = msg.Severity
		}
		c.mu.Unlock()

	case "unsubscribe":
		c.mu.Lock()
		c.metric = ""
		c.severity = ""
		c.mu.Unlock()

	case "ping":
		c.trySend(Event{Type: EventPong, Timestamp: time.Now().UTC()})
	}
}
