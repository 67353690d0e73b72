package raft

import "github.com/ecclarke42/browseraft/raft/wire"

// addPeer handles an inbound PeerAdded announcement (§4.5): a new
// participant joined the channel and introduces itself. The leader
// responds by broadcasting the full peer set so the newcomer (and anyone
// else mid-reconciliation) converges on one membership view.
func (n *Node[T]) addPeer(from Peer) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.peers[from] = struct{}{}
	isLeader := n.role == Leader
	snapshot := n.peers.Clone()
	n.mu.Unlock()

	if isLeader {
		n.broadcastPeerSet(snapshot)
	}
}

// removePeer handles an inbound PeerRemoved announcement: a graceful exit,
// so no reconciliation broadcast follows (§4.5 treats this as advisory;
// the departed peer will also simply stop answering heartbeats/votes).
func (n *Node[T]) removePeer(from Peer) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	delete(n.peers, from)
	n.mu.Unlock()
}

// reconcilePeers replaces the local view of membership wholesale with an
// authoritative PeerSet broadcast by the leader, re-inserting self if the
// leader's view somehow omitted it.
func (n *Node[T]) reconcilePeers(peers PeerSet) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	if !peers.Contains(n.id) {
		peers[n.id] = struct{}{}
	}
	n.peers = peers
	n.mu.Unlock()
}

// broadcastPeerSet announces the authoritative membership view. Only the
// leader calls this.
func (n *Node[T]) broadcastPeerSet(peers PeerSet) {
	ids := make([]wire.PeerID, 0, len(peers))
	for p := range peers {
		ids = append(ids, wire.PeerID(p))
	}
	n.post(wire.Message{Kind: wire.KindPeerSet, Peers: ids}, wire.RecipientEveryone())
}
