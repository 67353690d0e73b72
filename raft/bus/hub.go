package bus

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub is the server side of the websocket broadcast bus: every connection
// is tagged with the "channel" query parameter it dialed with, and every
// frame received from a connection is relayed verbatim to every other
// connection on the same channel. The hub does not parse or validate
// frames — it is a dumb relay, matching spec.md §1's assumption that the
// bus itself is an external collaborator with no protocol awareness.
type Hub struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	channels map[string]map[string]*hubConn
}

type hubConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs a Hub ready to be used as an http.Handler.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		channels: make(map[string]map[string]*hubConn),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "missing channel query parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	hc := &hubConn{id: uuid.NewString(), conn: conn, send: make(chan []byte, 64)}
	h.join(channel, hc)
	defer h.leave(channel, hc)

	done := make(chan struct{})
	go h.writePump(hc, done)
	h.readPump(channel, hc)
	close(done)
}

func (h *Hub) join(channel string, hc *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.channels[channel]
	if !ok {
		conns = make(map[string]*hubConn)
		h.channels[channel] = conns
	}
	conns[hc.id] = hc
}

func (h *Hub) leave(channel string, hc *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.channels[channel]; ok {
		delete(conns, hc.id)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
	close(hc.send)
	_ = hc.conn.Close()
}

func (h *Hub) readPump(channel string, hc *hubConn) {
	for {
		_, data, err := hc.conn.ReadMessage()
		if err != nil {
			return
		}
		h.relay(channel, hc, data)
	}
}

func (h *Hub) writePump(hc *hubConn, done <-chan struct{}) {
	for {
		select {
		case data, ok := <-hc.send:
			if !ok {
				return
			}
			if err := hc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) relay(channel string, from *hubConn, data []byte) {
	h.mu.Lock()
	var targets []*hubConn
	for id, hc := range h.channels[channel] {
		if id == from.id {
			continue
		}
		targets = append(targets, hc)
	}
	h.mu.Unlock()

	for _, hc := range targets {
		select {
		case hc.send <- data:
		default:
			// Slow consumer: drop rather than block the relay loop. The bus
			// is assumed reliable per spec, but a wedged client must not be
			// allowed to stall delivery to everyone else.
		}
	}
}
