package sse

import (
	"path/filepath"
	"sync"

	"github.com/skillsenselab/workshopkit/logger"
)

// clientBuffer is the per-client send buffer. A client that falls this
// far behind starts losing events; the UI recovers by re-fetching the
// latest snapshot.
const clientBuffer = 256

// Client is one connected event-stream consumer.
type Client struct {
	id       string
	metadata map[string]string
	events   chan []byte
	log      *logger.Logger
}

// ClientOption configures a Client at registration time.
type ClientOption func(*Client)

// WithMetadata attaches an arbitrary key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) {
		c.metadata[key] = value
	}
}

// WithAnswerID records which answer this client is watching.
func WithAnswerID(answerID string) ClientOption {
	return WithMetadata("answer_id", answerID)
}

// NewClient creates a client with the given hub identifier.
func NewClient(id string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		metadata: make(map[string]string),
		events:   make(chan []byte, clientBuffer),
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client's hub identifier.
func (c *Client) ID() string { return c.id }

// Metadata returns all client metadata.
func (c *Client) Metadata() map[string]string { return c.metadata }

// AnswerID returns the answer this client is watching, if recorded.
func (c *Client) AnswerID() string { return c.metadata["answer_id"] }

// Events returns the channel the connection handler drains.
func (c *Client) Events() <-chan []byte { return c.events }

// Send queues data for the client. Returns false when the buffer is
// full; the event is dropped rather than blocking the hub.
func (c *Client) Send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		c.log.Warn("client buffer full, dropping event",
			logger.Fields("client_id", c.id))
		return false
	}
}

// Close closes the client's event channel.
func (c *Client) Close() {
	close(c.events)
}

// Hub tracks connected clients and fans broadcast events out to the
// ones whose IDs match each message's pattern.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *message
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
	log        *logger.Logger
}

type message struct {
	pattern string
	data    []byte
}

// NewHub creates a hub. Run must be started in a goroutine before
// clients register.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *message, clientBuffer),
		done:       make(chan struct{}),
		log:        log.WithComponent("sse"),
	}
}

// Run is the hub's event loop. It blocks until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Fields(
				"client_id", client.id,
				"total_clients", total,
			))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields(
				"client_id", client.id,
				"total_clients", total,
			))

		case msg := <-h.broadcast:
			h.broadcastMatching(msg.pattern, msg.data)
		}
	}
}

// Stop shuts the hub down, closing all client connections and causing
// Run to return. Safe to call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	h.log.Debug("all clients closed during shutdown")
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client and closes its event channel.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToPattern queues data for every client whose ID matches the
// glob pattern.
func (h *Hub) BroadcastToPattern(pattern string, data []byte) {
	h.broadcast <- &message{pattern: pattern, data: data}
}

func (h *Hub) broadcastMatching(pattern string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for clientID, client := range h.clients {
		matched, err := filepath.Match(pattern, clientID)
		if err != nil {
			h.log.Error("bad broadcast pattern", logger.Fields(
				"pattern", pattern,
				logger.FieldError, err.Error(),
			))
			return
		}
		if matched && client.Send(data) {
			sent++
		}
	}

	h.log.Debug("broadcast", logger.Fields(
		"pattern", pattern,
		"sent", sent,
		"total_clients", len(h.clients),
	))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the IDs of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// GetClient returns a client by ID, or nil if not connected.
func (h *Hub) GetClient(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

var _ Broadcaster = (*Hub)(nil)
