// Package wshub fans live alerts and ping results out to connected websocket
// clients, grounded on the teacher's internal/websocket hub: a register/
// unregister/broadcast goroutine owning a client set, upgraded per-connection
// via gorilla/websocket.
package wshub

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rcourtman/netpulse/internal/logging"
)

var log = logging.Component("wshub")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the envelope written to every client.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

// Hub owns the set of connected clients and the broadcast channel feeding
// them. StateGetter supplies the snapshot sent to a client immediately after
// it connects.
type Hub struct {
	stateGetter func() any

	register   chan *client
	unregister chan *client
	broadcast  chan Message

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub builds a Hub whose initial per-connection snapshot comes from
// stateGetter. Call Run in its own goroutine before serving any connections.
func NewHub(stateGetter func() any) *Hub {
	return &Hub{
		stateGetter: stateGetter,
		register:    make(chan *client),
		unregister:  make(chan *client),
		broadcast:   make(chan Message, 64),
		clients:     make(map[string]*client),
	}
}

// Run drives the register/unregister/broadcast loop until the broadcast
// channel is closed.
func (h *Hub) Run() {
	for {
		select {
		case c, ok := <-h.register:
			if !ok {
				return
			}
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()

		case msg, ok := <-h.broadcast:
			if !ok {
				h.mu.Lock()
				for id, c := range h.clients {
					close(c.send)
					delete(h.clients, id)
				}
				h.mu.Unlock()
				return
			}
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Warn().Str("clientId", c.id).Msg("dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Close stops Run and disconnects every client. Call it once, after Run has
// been started.
func (h *Hub) Close() {
	close(h.broadcast)
}

// BroadcastAlert fans an alert out to every connected client.
func (h *Hub) BroadcastAlert(alert any) {
	h.broadcast <- Message{Type: "alert", Data: sanitize(alert)}
}

// BroadcastPingResult fans a ping result out to every connected client.
func (h *Hub) BroadcastPingResult(result any) {
	h.broadcast <- Message{Type: "pingResult", Data: sanitize(result)}
}

// HandleWebSocket upgrades the connection, sends the initial state snapshot,
// and pumps outbound messages until the client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan Message, 16)}
	h.register <- c

	go h.readPump(c)
	h.writePump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	if h.stateGetter != nil {
		initial := Message{Type: "initialState", Data: sanitize(h.stateGetter())}
		if err := c.conn.WriteJSON(initial); err != nil {
			return
		}
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sanitize walks v by reflection and replaces any NaN/Inf float with 0, since
// encoding/json refuses to marshal those outright (e.g. a packet-loss
// percentage computed as 0/0 when a host has sent zero probes).
func sanitize(v any) any {
	return sanitizeReflect(reflect.ValueOf(v))
}

func sanitizeReflect(val reflect.Value) any {
	if !val.IsValid() {
		return nil
	}
	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return nil
		}
		return sanitizeReflect(val.Elem())
	case reflect.Float32, reflect.Float64:
		f := val.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0.0
		}
		return f
	case reflect.Struct:
		iface := val.Interface()
		data, err := json.Marshal(iface)
		if err != nil {
			return sanitizeStructFields(val)
		}
		var generic any
		json.Unmarshal(data, &generic)
		return generic
	case reflect.Map:
		out := make(map[string]any, val.Len())
		for _, key := range val.MapKeys() {
			out[fmt.Sprint(key.Interface())] = sanitizeReflect(val.MapIndex(key))
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			out[i] = sanitizeReflect(val.Index(i))
		}
		return out
	default:
		return val.Interface()
	}
}

// sanitizeStructFields handles the rare struct that itself contains a
// NaN/Inf float, field by field, since json.Marshal refuses the whole value.
func sanitizeStructFields(val reflect.Value) any {
	out := make(map[string]any, val.NumField())
	t := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		out[field.Name] = sanitizeReflect(val.Field(i))
	}
	return out
}
