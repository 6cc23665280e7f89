package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cruzzer/bazaar-api/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins (for development)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Asset ids the client subscribed to; empty means the full feed
	assets map[int64]bool
}

type envelope struct {
	assetID int64
	data    []byte
}

// Hub maintains the set of active clients and fans registry events out to
// them. It implements services.EventSink.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Registry events to fan out
	events chan envelope

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscription changes from client read pumps
	subscribe   chan subscription
	unsubscribe chan subscription

	logger *zap.Logger
}

type subscription struct {
	client  *Client
	assetID int64
}

// NewHub creates a new hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[*Client]bool),
		events:      make(chan envelope, 64),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		logger:      logger,
	}
}

// Publish queues a registry event for fan-out to connected clients.
func (h *Hub) Publish(event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	msg, err := json.Marshal(WebSocketMessage{
		Type:    string(event.Type),
		Payload: payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.events <- envelope{assetID: event.Asset.ID, data: msg}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case sub := <-h.subscribe:
			if h.clients[sub.client] {
				sub.client.assets[sub.assetID] = true
			}
		case sub := <-h.unsubscribe:
			if h.clients[sub.client] {
				delete(sub.client.assets, sub.assetID)
			}
		case ev := <-h.events:
			for client := range h.clients {
				if len(client.assets) > 0 && !client.assets[ev.assetID] {
					continue
				}
				select {
				case client.send <- ev.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// readPump pumps subscription messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.Error(err))
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			c.hub.logger.Warn("failed to parse message", zap.Error(err))
			continue
		}

		switch wsMessage.Type {
		case "subscribe", "unsubscribe":
			var assetID int64
			if err := json.Unmarshal(wsMessage.Payload, &assetID); err != nil {
				c.hub.logger.Warn("failed to parse subscription payload", zap.Error(err))
				continue
			}
			if wsMessage.Type == "subscribe" {
				c.hub.subscribe <- subscription{client: c, assetID: assetID}
			} else {
				c.hub.unsubscribe <- subscription{client: c, assetID: assetID}
			}
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// ServeWs handles WebSocket requests from clients
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 256),
			assets: make(map[int64]bool),
		}
		client.hub.register <- client

		// Send welcome message
		welcomeMsg := WebSocketMessage{
			Type:    "welcome",
			Payload: json.RawMessage(`{"message":"Connected to the Bazaar event feed"}`),
		}
		welcomeBytes, _ := json.Marshal(welcomeMsg)
		client.send <- welcomeBytes

		// Allow collection of memory referenced by the caller by doing all work in
		// new goroutines
		go client.writePump()
		go client.readPump()
	}
}
