// Package raft implements a peer-to-peer leader-election engine for agents
// that share a single named broadcast bus: a simplified variant of Raft
// restricted to leader election, membership discovery, and replicated
// application messages (no log, no log matching, no snapshots).
//
// The protocol logic is grounded on original_source/src/raft.rs and
// original_source/src/lib.rs (the browseraft-rs source this module is
// ported from); the surrounding shape (mutex-guarded state, a small
// Logger interface, a fluent Builder) is grounded on the teacher,
// github.com/jabolina/go-mcast.
package raft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ecclarke42/browseraft/logging"
	"github.com/ecclarke42/browseraft/metrics"
	"github.com/ecclarke42/browseraft/raft/bus"
	"github.com/ecclarke42/browseraft/raft/timers"
	"github.com/ecclarke42/browseraft/raft/wire"
)

var (
	// ErrBusClosed is returned (wrapped) when a post fails because the
	// underlying Bus has been torn down — fatal per spec.md §7.
	ErrBusClosed = errors.New("raft: bus closed")

	// ErrInvalidConfig is returned (wrapped) from Build when the node
	// cannot be constructed at all — fatal per spec.md §7.
	ErrInvalidConfig = errors.New("raft: invalid configuration")
)

// Node is a single participant in the election protocol. Node is safe for
// concurrent use: all mutable state is guarded by a single mutex, and the
// two user callbacks (OnReceived, OnRoleChange) are always invoked after
// that mutex is released, so user code calling back into the Node from a
// callback cannot deadlock.
type Node[T any] struct {
	id Peer

	electionTimeoutFixed *time.Duration
	electionTimeoutMin   time.Duration
	electionTimeoutMax   time.Duration
	heartbeatTimeout     time.Duration

	channel string
	bus     bus.Bus
	clock   clock.Clock
	timers  *timers.Registry
	rng     *rand.Rand

	log     logging.Logger
	metrics *metrics.Collector

	onReceived   func(T)
	onRoleChange func(Role)

	mu       sync.Mutex
	role     Role
	term     Term
	votedFor *Peer
	votes    PeerSet
	peers    PeerSet

	listener io.Closer
	stopped  bool
	stopOnce sync.Once
	fatalErr error

	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the node's own peer identity.
func (n *Node[T]) ID() Peer {
	return n.id
}

// Role returns a snapshot of the node's current role.
func (n *Node[T]) Role() Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

// Term returns a snapshot of the node's current term.
func (n *Node[T]) Term() Term {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.term
}

// Peers returns a snapshot copy of the node's known peer set, which always
// includes self.
func (n *Node[T]) Peers() PeerSet {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peers.Clone()
}

// Err returns the fatal error that killed this node, if any. It is nil
// while the node is alive and after a clean Stop(); it wraps ErrBusClosed
// once a post failure per §7 has brought the node down involuntarily.
// Callers can test for this with errors.Is(n.Err(), raft.ErrBusClosed).
func (n *Node[T]) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fatalErr
}

// Issue broadcasts payload to every peer if this node is currently Leader;
// otherwise the call is silently dropped, per §4.6. The leader does not
// receive its own payload back (the bus never delivers a node's own posts
// to itself) — callers that want leader-local delivery must invoke their
// own OnReceived-equivalent logic themselves.
func (n *Node[T]) Issue(payload T) {
	n.mu.Lock()
	isLeader := n.role == Leader
	n.mu.Unlock()
	if !isLeader {
		return
	}

	raw, err := wire.EncodePayload(payload)
	if err != nil {
		n.log.Errorf("encode payload: %v", err)
		return
	}
	n.post(wire.Message{Kind: wire.KindPayload, Payload: raw}, wire.RecipientEveryone())
}

// Stop is idempotent shutdown: it cancels both timers, detaches the bus
// listener, and broadcasts PeerRemoved. After Stop returns, no further
// state mutations occur and no further user callbacks are invoked for this
// node. In-flight outbound messages already posted are not revoked.
func (n *Node[T]) Stop() {
	n.shutdown(true)
}

// die is the involuntary counterpart to Stop: per §7, a bus post failure
// indicates the host broadcast primitive has been torn down and is fatal
// to the node. Go has no exception to propagate, so the idiomatic
// equivalent is to shut the node down itself rather than leave it running
// against a dead transport.
func (n *Node[T]) die(cause error) {
	n.mu.Lock()
	if n.stopped {
		// Already tearing down via a deliberate Stop(); the failure this
		// call reports is just that Stop's own best-effort final broadcast
		// found a dead bus, not a new fatal condition.
		n.mu.Unlock()
		return
	}
	n.fatalErr = cause
	n.mu.Unlock()

	n.log.Errorf("fatal: bus torn down: %v", cause)
	n.shutdown(false)
}

// shutdown runs the shared teardown sequence exactly once, however it was
// triggered. announce controls whether a final PeerRemoved broadcast is
// attempted; die skips it since the bus is already known to be gone.
func (n *Node[T]) shutdown(announce bool) {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.stopped = true
		n.timers.CancelAll()
		listener := n.listener
		n.listener = nil
		n.cancel()
		n.mu.Unlock()

		if listener != nil {
			_ = listener.Close()
		}

		if announce {
			// Best-effort: the bus may already be torn down, in which case
			// this broadcast is simply lost — acceptable, since the
			// remaining peers converge on PeerRemoved being silent anyway
			// (§4.5).
			n.post(wire.Message{Kind: wire.KindPeerRemoved}, wire.RecipientEveryone())
		}
		_ = n.bus.Close()
	})
}

func (n *Node[T]) isStopped() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stopped
}

// post serializes and broadcasts a protocol message from this node. A post
// failure means the bus has been torn down, which §7 treats as fatal to
// the node; post reacts by killing the node on its own goroutine so the
// caller (which may be holding no lock, or may itself be mid-shutdown)
// never blocks on it.
func (n *Node[T]) post(msg wire.Message, to wire.Recipient) {
	env := wire.Envelope{From: wire.PeerID(n.id), To: to, Msg: msg}
	if err := n.bus.Post(env); err != nil {
		n.log.Errorf("post %s: %v", msg.Kind, err)
		if errors.Is(err, bus.ErrClosed) {
			go n.die(fmt.Errorf("%w: %w", ErrBusClosed, err))
		}
	}
}

// electionTimeout picks this node's next election timeout: the fixed
// value if one was configured, otherwise a uniform random duration in
// [min, max).
func (n *Node[T]) electionTimeout() time.Duration {
	if n.electionTimeoutFixed != nil {
		return *n.electionTimeoutFixed
	}
	span := n.electionTimeoutMax - n.electionTimeoutMin
	if span <= 0 {
		return n.electionTimeoutMin
	}
	return n.electionTimeoutMin + time.Duration(n.rng.Int63n(int64(span)))
}

// setRole updates the role and reports whether it changed; a caller that
// gets true fires notifyRoleChange once after releasing n.mu. Callers must
// hold n.mu and must not call this while already inside a notify callback.
func (n *Node[T]) setRole(role Role) (changed bool) {
	if n.role == role {
		return false
	}
	n.role = role
	n.metrics.SetRole(int(role))
	return true
}

// notifyRoleChange invokes OnRoleChange outside the lock. Call this only
// after n.mu has been released.
func (n *Node[T]) notifyRoleChange(role Role) {
	if n.onRoleChange != nil {
		n.onRoleChange(role)
	}
}

func (n *Node[T]) String() string {
	return fmt.Sprintf("Node(%s)", n.id)
}
