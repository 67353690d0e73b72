package raft

import "github.com/ecclarke42/browseraft/raft/wire"

// onEnvelope is the bus.Handler installed on Build: every inbound frame on
// the channel passes through here first. Neither LocalBus nor the
// raftbus-hub relay delivers a node's own posts back to it; the from ==
// n.id check below is a defensive guard.
func (n *Node[T]) onEnvelope(env wire.Envelope) {
	if n.ctx.Err() != nil || n.isStopped() {
		return
	}

	from := Peer(env.From)
	if from == n.id {
		return
	}
	if !env.To.Everyone && Peer(env.To.Peer) != n.id {
		return
	}

	msg := env.Msg
	switch msg.Kind {
	case wire.KindPeerAdded:
		n.addPeer(from)

	case wire.KindPeerRemoved:
		n.removePeer(from)

	case wire.KindPeerSet:
		peers := make(PeerSet, len(msg.Peers))
		for _, id := range msg.Peers {
			peers[Peer(id)] = struct{}{}
		}
		n.reconcilePeers(peers)

	case wire.KindHeartbeat:
		n.receiveHeartbeat(Term(msg.Term), from)

	case wire.KindVoteRequest:
		candidate := Peer(msg.Candidate)
		if candidate == n.id {
			return
		}
		n.receiveVoteRequest(Term(msg.Term), candidate)

	case wire.KindVoteResponse:
		// Only the candidate named in the response should act on it.
		if Peer(msg.Candidate) != n.id {
			return
		}
		n.receiveVote(Term(msg.Term), Peer(msg.Follower))

	case wire.KindPayload:
		if n.onReceived == nil {
			return
		}
		var payload T
		if err := wire.DecodePayload(msg.Payload, &payload); err != nil {
			n.log.Errorf("decode payload from %s: %v", from, err)
			return
		}
		n.onReceived(payload)

	default:
		n.log.Warnf("unknown message kind %q from %s", msg.Kind, from)
	}
}
