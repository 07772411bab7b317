package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"onechurch/logger"
	"onechurch/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

type roomOp struct {
	client *Client
	room   string
	leave  bool
}

type roomMessage struct {
	room string
	data []byte
}

type directMessage struct {
	client *Client
	data   []byte
}

// Hub tracks connected clients and their rooms. Start owns every map; the
// other methods talk to it over channels.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	rooming    chan roomOp
	broadcast  chan roomMessage
	direct     chan directMessage

	quit     chan struct{}
	stopOnce sync.Once
	count    atomic.Int64
}

type Client struct {
	id      string
	actorID string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooming:    make(chan roomOp),
		broadcast:  make(chan roomMessage, 64),
		direct:     make(chan directMessage, 64),
		quit:       make(chan struct{}),
	}
}

var _ Broadcaster = (*Hub)(nil)

// Start runs the hub loop until Stop is called.
func (h *Hub) Start() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			logger.Info.Printf("✅ WebSocket client %s registered. Total clients: %d", client.id, len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				logger.Info.Printf("❌ WebSocket client %s unregistered. Total clients: %d", client.id, len(h.clients))
			}

		case op := <-h.rooming:
			if !h.clients[op.client] {
				continue
			}
			if op.leave {
				if members, ok := h.rooms[op.room]; ok {
					delete(members, op.client)
					if len(members) == 0 {
						delete(h.rooms, op.room)
					}
				}
				continue
			}
			members, ok := h.rooms[op.room]
			if !ok {
				members = make(map[*Client]bool)
				h.rooms[op.room] = members
			}
			members[op.client] = true
			h.deliver(op.client, encode(EventJoined, gin.H{"room": op.room}))

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.room] {
				h.deliver(client, msg.data)
			}

		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.data)
			}

		case <-h.quit:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// Stop closes every client and ends Start.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) ConnectedClients() int { return int(h.count.Load()) }

// deliver queues data for client, disconnecting it when its buffer is full.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		logger.Warn.Printf("WebSocket client %s is too slow, disconnecting", client.id)
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(client.send)
	h.count.Add(-1)
}

func encode(event string, payload interface{}) []byte {
	data, err := json.Marshal(Frame{Type: event, Payload: payload})
	if err != nil {
		logger.Error.Printf("❌ Error marshaling WebSocket frame %s: %v", event, err)
		return nil
	}
	return data
}

// Emit sends event to every client in room.
func (h *Hub) Emit(room, event string, payload interface{}) {
	if data := encode(event, payload); data != nil {
		h.Deliver(room, data)
	}
}

// Deliver fans a pre-encoded frame out to room.
func (h *Hub) Deliver(room string, data []byte) {
	select {
	case h.broadcast <- roomMessage{room: room, data: data}:
	case <-h.quit:
	}
}

func (h *Hub) sendTo(client *Client, event string, payload interface{}) {
	data := encode(event, payload)
	if data == nil {
		return
	}
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.quit:
	}
}

func (h *Hub) changeRoom(client *Client, room string, leave bool) {
	select {
	case h.rooming <- roomOp{client: client, room: room, leave: leave}:
	case <-h.quit:
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler authenticates the upgrade request like any REST call (cookie,
// bearer or token query parameter) and attaches the socket to the hub.
func (h *Hub) Handler(auth *middleware.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		actor, err := auth.Resolve(ctx, middleware.TokenFromRequest(c, true))
		cancel()
		if err != nil {
			logger.Warn.Printf("❌ WebSocket connection rejected: %v", err)
			_ = c.Error(err)
			c.Abort()
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			id:      uuid.NewString(),
			actorID: actor.ID.Hex(),
			conn:    conn,
			send:    make(chan []byte, sendBuffer),
			hub:     h,
		}

		// queued before registration so it is always the first frame
		client.send <- encode(EventConnected, gin.H{
			"id":      client.id,
			"actorId": client.actorID,
			"time":    time.Now().Unix(),
		})

		select {
		case h.register <- client:
		case <-h.quit:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
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
				logger.Warn.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.sendTo(c, EventError, gin.H{"message": "malformed frame"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inbound) {
	switch msg.Type {
	case MsgJoin:
		if target := joinTarget(msg.Payload); target != "" && target != c.actorID {
			c.hub.sendTo(c, EventError, gin.H{"message": "cannot join another user's room"})
			return
		}
		c.hub.changeRoom(c, UserRoom(c.actorID), false)
	case MsgJoinFeed:
		c.hub.changeRoom(c, FeedRoom, false)
	case MsgLeaveFeed:
		c.hub.changeRoom(c, FeedRoom, true)
	case MsgPing:
		c.hub.sendTo(c, EventPong, gin.H{"time": time.Now().Unix()})
	default:
		c.hub.sendTo(c, EventError, gin.H{"message": "unknown message type " + msg.Type})
	}
}

// joinTarget accepts either "id" or {"userId": "id"} as the join payload.
func joinTarget(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.UserID
	}
	return ""
}

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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
