package realtime

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/straysafe/straysafebackend/logging"
)

const (
	EventPinCreated   = "pin.created"
	EventPinDeleted   = "pin.deleted"
	EventPinThumbnail = "pin.thumbnail"

	writeWait = 10 * time.Second
	sendQueue = 64
)

// Event is a message pushed to map clients.
type Event struct {
	Type      string      `json:"type"`
	PinID     uint        `json:"pin_id"`
	MapID     *uint       `json:"map_id,omitempty"`
	Pin       interface{} `json:"pin,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Broadcaster is what the services need from the hub.
type Broadcaster interface {
	Broadcast(event Event)
}

type message struct {
	mapID   *uint
	payload []byte
}

type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	mapID *uint // nil receives every event
}

func (c *Client) wants(mapID *uint) bool {
	return c.mapID == nil || (mapID != nil && *mapID == *c.mapID)
}

// Hub fans pin events out to websocket clients, optionally scoped to one map.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(msg.mapID) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		logging.Err(err).Str("type", event.Type).Msg("realtime: failed to marshal event")
		return
	}
	select {
	case h.broadcast <- message{mapID: event.MapID, payload: encoded}:
	default:
		logging.Warn().Str("type", event.Type).Msg("realtime: dropping event, broadcast channel full")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers a client. A map_id query
// parameter limits delivery to that map's pins.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var mapID *uint
	if raw := r.URL.Query().Get("map_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			http.Error(w, "invalid map_id", http.StatusBadRequest)
			return
		}
		v := uint(id)
		mapID = &v
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("realtime: websocket upgrade failed")
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, sendQueue), mapID: mapID}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		for msg := range client.send {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	}()

	// drain reads so close frames are seen
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
