package raft

import "fmt"

// Peer is the identifier of a single participant on a channel. Two peers
// are equal iff their underlying ids are equal, and peers are totally
// ordered by id so the two-node degenerate case has a deterministic
// tiebreak (see Node.onElectionTimeout).
type Peer uint32

// Less reports whether p sorts before other. Used only to break ties in
// the two-peer cluster, where randomized election timeouts cannot provide
// a majority.
func (p Peer) Less(other Peer) bool {
	return p < other
}

func (p Peer) String() string {
	return fmt.Sprintf("peer(%d)", uint32(p))
}

// Role is the role a Node plays in the current term.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Term is a monotonically non-decreasing election epoch, local to each
// node.
type Term uint32

// PeerSet is the set of peers a node currently believes exist, including
// itself.
type PeerSet map[Peer]struct{}

// NewPeerSet builds a PeerSet from the given peers.
func NewPeerSet(peers ...Peer) PeerSet {
	s := make(PeerSet, len(peers))
	for _, p := range peers {
		s[p] = struct{}{}
	}
	return s
}

// Clone returns an independent copy of the set.
func (s PeerSet) Clone() PeerSet {
	c := make(PeerSet, len(s))
	for p := range s {
		c[p] = struct{}{}
	}
	return c
}

// Slice returns the set's members in unspecified order.
func (s PeerSet) Slice() []Peer {
	out := make([]Peer, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// Contains reports whether p is a member of the set.
func (s PeerSet) Contains(p Peer) bool {
	_, ok := s[p]
	return ok
}

// Quorum is the strict majority size of the set: floor(n/2) + 1.
func (s PeerSet) Quorum() int {
	return len(s)/2 + 1
}
