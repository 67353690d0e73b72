package raft

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecclarke42/browseraft/logging"
	"github.com/ecclarke42/browseraft/metrics"
	"github.com/ecclarke42/browseraft/raft/bus"
	"github.com/ecclarke42/browseraft/raft/timers"
	"github.com/ecclarke42/browseraft/raft/wire"
)

const (
	defaultChannel            = "raft-nodes"
	defaultElectionTimeoutMin = 150 * time.Millisecond
	defaultElectionTimeoutMax = 300 * time.Millisecond
	defaultHeartbeatTimeout   = 50 * time.Millisecond
)

// Builder is the fluent configuration record described by spec.md §4.7.
// Each method returns the receiver so calls chain; Build finalizes the
// configuration and constructs a running Node.
type Builder[T any] struct {
	id      *Peer
	channel string

	electionTimeout     *time.Duration
	electionTimeoutLow  *time.Duration
	electionTimeoutHigh *time.Duration
	heartbeatTimeout    time.Duration

	onReceived   func(T)
	onRoleChange func(Role)

	logger     logging.Logger
	registerer prometheus.Registerer
	transport  bus.Bus
	clock      clock.Clock
}

// NewBuilder returns a Builder with every option at its documented
// default.
func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{
		channel:          defaultChannel,
		heartbeatTimeout: defaultHeartbeatTimeout,
	}
}

// ID fixes the node's peer identifier. Defaults to a random 32-bit value.
func (b *Builder[T]) ID(id uint32) *Builder[T] {
	p := Peer(id)
	b.id = &p
	return b
}

// Channel sets the name of the broadcast bus to connect to. Defaults to
// "raft-nodes".
func (b *Builder[T]) Channel(name string) *Builder[T] {
	b.channel = name
	return b
}

// ElectionTimeout fixes the election timeout. If both ElectionTimeout and
// ElectionTimeoutRange are set, the fixed value wins.
func (b *Builder[T]) ElectionTimeout(d time.Duration) *Builder[T] {
	b.electionTimeout = &d
	return b
}

// ElectionTimeoutRange sets the range for the randomized election timeout,
// normalizing lo/hi so the lower bound is always the smaller. Defaults to
// (150ms, 300ms).
func (b *Builder[T]) ElectionTimeoutRange(lo, hi time.Duration) *Builder[T] {
	if hi < lo {
		lo, hi = hi, lo
	}
	b.electionTimeoutLow = &lo
	b.electionTimeoutHigh = &hi
	return b
}

// HeartbeatTimeout sets the leader heartbeat period. Defaults to 50ms.
func (b *Builder[T]) HeartbeatTimeout(d time.Duration) *Builder[T] {
	b.heartbeatTimeout = d
	return b
}

// OnReceived attaches a callback invoked when an application payload
// broadcast by the leader arrives.
func (b *Builder[T]) OnReceived(fn func(T)) *Builder[T] {
	b.onReceived = fn
	return b
}

// OnRoleChange attaches a callback invoked exactly once per role
// transition, after the node's internal lock has been released.
func (b *Builder[T]) OnRoleChange(fn func(Role)) *Builder[T] {
	b.onRoleChange = fn
	return b
}

// Logger overrides the default stdlib-backed logger.
func (b *Builder[T]) Logger(l logging.Logger) *Builder[T] {
	b.logger = l
	return b
}

// Metrics registers Prometheus instrumentation against reg. If never
// called, the node runs without metrics.
func (b *Builder[T]) Metrics(reg prometheus.Registerer) *Builder[T] {
	b.registerer = reg
	return b
}

// Transport overrides the default in-process bus with a caller-supplied
// one (for example a bus.WebSocketBus dialed against a raftbus-hub
// server). If never called, Build connects a bus.LocalBus to Channel().
func (b *Builder[T]) Transport(t bus.Bus) *Builder[T] {
	b.transport = t
	return b
}

// Clock overrides the time source used for the election/heartbeat timers.
// Intended for tests driving a *clock.Mock; production code should leave
// this unset, which defaults to the real wall clock.
func (b *Builder[T]) Clock(c clock.Clock) *Builder[T] {
	b.clock = c
	return b
}

func randomPeerID() (Peer, *mrand.Rand, error) {
	var seedBytes [8]byte
	if _, err := rand.Read(seedBytes[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: seed rng: %w", ErrInvalidConfig, err)
	}
	seed := int64(binary.LittleEndian.Uint64(seedBytes[:]))
	rng := mrand.New(mrand.NewSource(seed))
	return Peer(rng.Uint32()), rng, nil
}

// Build finalizes the configuration and constructs a running Node: it
// installs the bus listener, starts the election timer, inserts self into
// peers, and broadcasts PeerAdded.
func (b *Builder[T]) Build() (*Node[T], error) {
	// A fresh rng is always minted (even with a fixed ID) since it also
	// seeds election-timeout jitter.
	generatedID, nodeRng, err := randomPeerID()
	if err != nil {
		return nil, err
	}

	nodeID := generatedID
	if b.id != nil {
		nodeID = *b.id
	}

	electionMin, electionMax := defaultElectionTimeoutMin, defaultElectionTimeoutMax
	if b.electionTimeoutLow != nil {
		electionMin, electionMax = *b.electionTimeoutLow, *b.electionTimeoutHigh
	}

	clk := b.clock
	if clk == nil {
		clk = clock.New()
	}

	channel := b.channel
	if channel == "" {
		channel = defaultChannel
	}

	transport := b.transport
	if transport == nil {
		transport = bus.NewLocalBus(channel)
	}

	logger := b.logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node[T]{
		id:                   nodeID,
		electionTimeoutFixed: b.electionTimeout,
		electionTimeoutMin:   electionMin,
		electionTimeoutMax:   electionMax,
		heartbeatTimeout:     b.heartbeatTimeout,
		channel:              channel,
		bus:                  transport,
		clock:                clk,
		timers:               timers.NewRegistry(clk),
		rng:                  nodeRng,
		log:                  logger,
		metrics:              metrics.New(b.registerer, fmt.Sprintf("%d", uint32(nodeID))),
		onReceived:           b.onReceived,
		onRoleChange:         b.onRoleChange,
		role:                 Follower,
		term:                 0,
		peers:                NewPeerSet(nodeID),
		ctx:                  ctx,
		cancel:               cancel,
	}

	listener, err := n.bus.Listen(n.onEnvelope)
	if err != nil {
		cancel()
		if errors.Is(err, bus.ErrClosed) {
			return nil, fmt.Errorf("%w: listen on bus: %w", ErrBusClosed, err)
		}
		return nil, fmt.Errorf("%w: listen on bus: %w", ErrInvalidConfig, err)
	}
	n.listener = listener

	n.mu.Lock()
	n.scheduleElectionTimer()
	n.mu.Unlock()

	n.post(wire.Message{Kind: wire.KindPeerAdded}, wire.RecipientEveryone())

	return n, nil
}
