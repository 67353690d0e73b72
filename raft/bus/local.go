package bus

import (
	"io"
	"sync"

	"github.com/ecclarke42/browseraft/raft/wire"
)

// registry is the process-wide table of named channels, analogous to the
// way a browser's same-origin BroadcastChannel(name) resolves to the same
// underlying channel for every caller in the process. It exists so
// multiple Nodes built in the same test or demo process can talk to each
// other without a real network hop.
var registry = struct {
	mu       sync.Mutex
	channels map[string]*hub
}{channels: make(map[string]*hub)}

// hub fans a posted frame out to every connection on a channel except the
// poster itself.
type hub struct {
	mu   sync.Mutex
	subs map[*LocalBus]struct{}
}

func hubFor(name string) *hub {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	h, ok := registry.channels[name]
	if !ok {
		h = &hub{subs: make(map[*LocalBus]struct{})}
		registry.channels[name] = h
	}
	return h
}

func (h *hub) join(b *LocalBus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[b] = struct{}{}
}

func (h *hub) leave(b *LocalBus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, b)
}

func (h *hub) broadcast(from *LocalBus, e wire.Envelope) {
	h.mu.Lock()
	targets := make([]*LocalBus, 0, len(h.subs))
	for sub := range h.subs {
		if sub == from {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(e)
	}
}

// LocalBus is an in-process Bus implementation backed by the package-level
// hub registry. It is the default transport for same-process multi-node
// tests and demos, grounded on the teacher's Transport interface but
// without any network/serialization hop since there is nothing external to
// talk to.
type LocalBus struct {
	name string
	hub  *hub

	mu      sync.Mutex
	handler Handler
	closed  bool
}

// NewLocalBus joins the named in-process channel, creating it if this is
// the first connection to use that name.
func NewLocalBus(channel string) *LocalBus {
	b := &LocalBus{name: channel, hub: hubFor(channel)}
	b.hub.join(b)
	return b
}

func (b *LocalBus) Post(e wire.Envelope) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	b.hub.broadcast(b, e)
	return nil
}

func (b *LocalBus) Listen(h Handler) (io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.handler = h
	return listenerCloser{b}, nil
}

type listenerCloser struct{ b *LocalBus }

func (l listenerCloser) Close() error {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	l.b.handler = nil
	return nil
}

func (b *LocalBus) deliver(e wire.Envelope) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(e)
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handler = nil
	b.mu.Unlock()

	b.hub.leave(b)
	return nil
}
