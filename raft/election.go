package raft

import (
	"github.com/ecclarke42/browseraft/raft/timers"
	"github.com/ecclarke42/browseraft/raft/wire"
)

// scheduleElectionTimer arms a fresh election timer, cancelling whatever
// was scheduled before (§4.3's replace-and-cancel-previous semantics).
// Callers must hold n.mu.
func (n *Node[T]) scheduleElectionTimer() {
	d := n.electionTimeout()
	n.timers.Schedule(timers.Election, d, n.onElectionTimeout)
}

// lowerPeerLocked returns the lowest-id peer currently known. Callers must
// hold n.mu.
func (n *Node[T]) lowerPeerLocked() Peer {
	lowest := n.id
	first := true
	for p := range n.peers {
		if first || p.Less(lowest) {
			lowest = p
			first = false
		}
	}
	return lowest
}

// onElectionTimeout runs when the election timer fires: a Follower (or
// Candidate whose own election timed out again) with no heartbeats in the
// timeout window starts a new round. Behavior depends on |peers| per
// spec.md §4.4.
func (n *Node[T]) onElectionTimeout() {
	// Cheap bail-out before touching the lock: a timer fired against a
	// node that has already been torn down (the cyclic-ownership concern
	// in callbacks that outlive their owner).
	if n.ctx.Err() != nil {
		return
	}

	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	if n.role == Leader {
		// A stale callback: the timer fired concurrently with (or just
		// before) this node winning the election via another path.
		// Timer.Stop() cannot guarantee a racing callback is suppressed, so
		// this is the liveness-flag guard spec.md §4.3 calls for.
		n.mu.Unlock()
		return
	}

	switch len(n.peers) {
	case 1:
		// Sole node in the cluster: immediately self-win in a new term.
		n.term++
		n.metrics.SetTerm(uint32(n.term))
		n.mu.Unlock()
		n.winElection()

	case 2:
		// Degenerate quorum: randomized timeouts can't produce a majority
		// with only two nodes, so the lower-id peer wins deterministically
		// at its own timeout; the higher-id peer just reschedules and will
		// concede once it sees the winner's first heartbeat.
		lower := n.lowerPeerLocked()
		isLower := n.id == lower
		if isLower {
			n.term++
			n.metrics.SetTerm(uint32(n.term))
		}
		n.mu.Unlock()

		if isLower {
			n.winElection()
			return
		}
		n.mu.Lock()
		if !n.stopped {
			n.scheduleElectionTimer()
		}
		n.mu.Unlock()

	default:
		n.term++
		changed := n.setRole(Candidate)
		candidate := n.id
		n.votedFor = &candidate
		n.votes = NewPeerSet(candidate)
		n.metrics.SetTerm(uint32(n.term))
		n.metrics.ElectionStarted()
		term := n.term
		n.scheduleElectionTimer()
		n.mu.Unlock()

		if changed {
			n.notifyRoleChange(Candidate)
		}
		n.post(wire.Message{
			Kind:      wire.KindVoteRequest,
			Term:      wire.Term(term),
			Candidate: wire.PeerID(candidate),
		}, wire.RecipientEveryone())
	}
}

// receiveVoteRequest handles an inbound VoteRequest per spec.md §4.4.
func (n *Node[T]) receiveVoteRequest(term Term, candidate Peer) {
	if candidate == n.id {
		return
	}

	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}

	if term < n.term {
		n.mu.Unlock()
		return
	}
	if term > n.term {
		n.term = term
		n.votedFor = nil
		n.votes = nil
		n.metrics.SetTerm(uint32(term))
	}

	grant := n.role == Follower && n.votedFor == nil
	if grant {
		c := candidate
		n.votedFor = &c
		n.metrics.VoteGranted()
	}

	// A heard-from peer (whether or not it got a vote) extends the
	// election deadline.
	n.scheduleElectionTimer()
	n.mu.Unlock()

	if grant {
		n.post(wire.Message{
			Kind:      wire.KindVoteResponse,
			Term:      wire.Term(term),
			Candidate: wire.PeerID(candidate),
			Follower:  wire.PeerID(n.id),
		}, wire.RecipientPeer(wire.PeerID(candidate)))
	}
}

// receiveVote handles an inbound VoteResponse at a candidate, per
// spec.md §4.4. Whether a VoteResponse carrying a term greater than
// self.term should also raise self.term is left ambiguous by the source
// (see DESIGN.md's Open Question notes); this implementation follows the
// source exactly and counts the vote without adjusting self.term.
func (n *Node[T]) receiveVote(term Term, follower Peer) {
	n.mu.Lock()
	if n.stopped || n.role != Candidate {
		n.mu.Unlock()
		return
	}
	if term < n.term {
		n.mu.Unlock()
		return
	}

	if n.votes == nil {
		n.votes = PeerSet{}
	}
	n.votes[follower] = struct{}{}
	won := len(n.votes) > len(n.peers)/2
	n.mu.Unlock()

	if won {
		n.winElection()
	}
}

// winElection transitions to Leader, immediately starts the heartbeat
// loop, and broadcasts its peer set so every follower adopts the leader's
// membership view. There is deliberately no re-check of role == Candidate
// here (the source carries this same check commented out) — the invariant
// that at most one winElection call can succeed per term is upheld by the
// callers: only receiveVote (itself gated on role == Candidate) and the
// 1-/2-peer degenerate paths in onElectionTimeout (which run from Follower
// or Candidate, never from Leader) reach this method.
func (n *Node[T]) winElection() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}

	changed := n.setRole(Leader)
	n.votedFor = nil
	n.votes = PeerSet{}
	n.timers.Cancel(timers.Election)
	peers := n.peers.Clone()
	n.mu.Unlock()

	if changed {
		n.notifyRoleChange(Leader)
	}
	n.emitHeartbeat()
	n.broadcastPeerSet(peers)
}

// emitHeartbeat broadcasts a Heartbeat for the current term and schedules
// the next one. Called both immediately upon winning an election and
// repeatedly from the heartbeat timer thereafter.
func (n *Node[T]) emitHeartbeat() {
	if n.ctx.Err() != nil {
		return
	}

	n.mu.Lock()
	if n.stopped || n.role != Leader {
		n.mu.Unlock()
		return
	}

	term := n.term
	n.timers.Schedule(timers.Heartbeat, n.heartbeatTimeout, n.emitHeartbeat)
	n.metrics.HeartbeatEmitted()
	n.mu.Unlock()

	n.post(wire.Message{Kind: wire.KindHeartbeat, Term: wire.Term(term)}, wire.RecipientEveryone())
}

// receiveHeartbeat handles an inbound Heartbeat per spec.md §4.4. The
// source never steps a Leader down on a higher-term heartbeat (it simply
// ignores all inbound heartbeats while Leader); this implementation
// follows that exactly, per DESIGN.md's Open Question notes.
func (n *Node[T]) receiveHeartbeat(term Term, _ Peer) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}

	var (
		notify  bool
		newRole Role
	)

	switch n.role {
	case Leader:
		n.mu.Unlock()
		return

	case Candidate:
		if term >= n.term {
			notify = n.setRole(Follower)
			newRole = Follower
			n.votedFor = nil
			n.votes = nil
		}

	case Follower:
		if term > n.term {
			n.term = term
			n.votedFor = nil
			n.metrics.SetTerm(uint32(term))
		}
	}

	n.scheduleElectionTimer()
	n.mu.Unlock()

	if notify {
		n.notifyRoleChange(newRole)
	}
}
