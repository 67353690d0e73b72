package bus

import (
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ecclarke42/browseraft/raft/wire"
)

// WebSocketBus is a Bus implementation that relays frames through a
// raftbus-hub server (see cmd/raftbus-hub and NewHub) instead of an
// in-process registry, so nodes running in separate processes (or on
// separate machines) can still share a named broadcast channel. The hub
// never echoes a frame back to the connection that sent it, preserving the
// non-loopback guarantee §4.2 requires of any Bus Adapter.
type WebSocketBus struct {
	conn *websocket.Conn

	mu      sync.Mutex
	handler Handler
	closed  bool

	readErr chan error
}

// DialWebSocket connects to a raftbus-hub server at addr (e.g.
// "ws://localhost:7630") and joins the named channel.
func DialWebSocket(addr, channel string) (*WebSocketBus, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("bus: parse hub address: %w", err)
	}
	q := u.Query()
	q.Set("channel", channel)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("bus: dial hub: %w", err)
	}

	b := &WebSocketBus{conn: conn, readErr: make(chan error, 1)}
	go b.readLoop()
	return b, nil
}

func (b *WebSocketBus) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			b.closed = true
			b.mu.Unlock()
			b.readErr <- err
			return
		}
		e, err := wire.Decode(data)
		if err != nil {
			// Corrupt or foreign frame on the shared channel: drop it,
			// don't tear down the connection.
			continue
		}

		b.mu.Lock()
		h := b.handler
		b.mu.Unlock()
		if h != nil {
			h(e)
		}
	}
}

// Err returns a channel that receives the connection's terminal read error
// exactly once, when the hub connection drops. Callers can select on this
// to notice a dead transport
// without waiting for the next failed Post.
func (b *WebSocketBus) Err() <-chan error {
	return b.readErr
}

func (b *WebSocketBus) Post(e wire.Envelope) error {
	data, err := wire.Encode(e)
	if err != nil {
		return fmt.Errorf("bus: encode envelope: %w", err)
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

func (b *WebSocketBus) Listen(h Handler) (io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.handler = h
	return listenerCloserWS{b}, nil
}

type listenerCloserWS struct{ b *WebSocketBus }

func (l listenerCloserWS) Close() error {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	l.b.handler = nil
	return nil
}

func (b *WebSocketBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handler = nil
	b.mu.Unlock()

	return b.conn.Close()
}
