// Package bus implements the Bus Adapter: a thin wrapper around a named
// broadcast primitive that posts serialized envelopes and installs a
// single delivery handler per connection, mirroring the teacher's
// Transport interface (pkg/mcast/core/transport.go) narrowed down to the
// spec's single broadcast-to-everyone-but-self primitive.
package bus

import (
	"errors"
	"io"

	"github.com/ecclarke42/browseraft/raft/wire"
)

// ErrClosed is returned from Post once the bus has been torn down. Per the
// protocol's error handling design this is fatal to the node that observes
// it — the host primitive is gone.
var ErrClosed = errors.New("bus: closed")

// Handler is invoked once per inbound envelope. It must not block for long;
// the adapter does not multiplex handler execution.
type Handler func(wire.Envelope)

// Bus is a connection to a single named broadcast channel. A Bus never
// delivers a frame posted through itself back to its own Listen handler.
type Bus interface {
	// Post broadcasts the envelope to every other connection on the
	// channel. Returns ErrClosed (or a wrapped form of it) if the bus has
	// been closed.
	Post(e wire.Envelope) error

	// Listen installs the single delivery handler for this connection.
	// Calling Listen a second time replaces the previous handler. The
	// returned Closer detaches the handler; closing it does not close the
	// whole bus connection.
	Listen(h Handler) (io.Closer, error)

	// Close tears down this connection: detaches any installed handler and
	// releases the underlying resource. Close is idempotent.
	Close() error
}
