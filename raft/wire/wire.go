// Package wire implements the envelope and tagged-message-union codec for
// the leader-election protocol. The encoding mirrors the teacher's
// RPCHeader/RPC-command shape but with a single discriminator field
// ("kind") per the wire protocol described by the election spec.
package wire

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant carried by a Message.
type Kind string

const (
	KindPeerAdded    Kind = "PeerAdded"
	KindPeerRemoved  Kind = "PeerRemoved"
	KindPeerSet      Kind = "PeerSet"
	KindVoteRequest  Kind = "VoteRequest"
	KindVoteResponse Kind = "VoteResponse"
	KindHeartbeat    Kind = "Heartbeat"
	KindPayload      Kind = "Payload"
)

// Message is the tagged-union wire payload. Only the fields relevant to
// Kind are populated; the rest are left at zero value. Payload carries an
// opaque, already-encoded application value so the protocol layer never
// needs to know the application's schema.
type Message struct {
	Kind Kind `json:"kind"`

	// VoteRequest, VoteResponse, Heartbeat
	Term Term `json:"term,omitempty"`

	// VoteRequest, VoteResponse
	Candidate PeerID `json:"candidate,omitempty"`

	// VoteResponse
	Follower PeerID `json:"follower,omitempty"`

	// PeerSet
	Peers []PeerID `json:"peers,omitempty"`

	// Payload
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Term and PeerID are plain aliases over the wire so this package does not
// need to import the raft package (which imports wire for the codec,
// avoiding an import cycle).
type (
	Term   uint32
	PeerID uint32
)

// Recipient addresses an Envelope: either every subscriber on the channel,
// or exactly one peer.
type Recipient struct {
	Everyone bool
	Peer     PeerID
}

// RecipientEveryone is the broadcast recipient.
func RecipientEveryone() Recipient { return Recipient{Everyone: true} }

// RecipientPeer addresses a single peer by id.
func RecipientPeer(id PeerID) Recipient { return Recipient{Peer: id} }

// recipientJSON mirrors the Rust source's serde-derived enum encoding:
// {"Everyone": null} or {"Peer": <id>}, chosen so the wire format stays a
// tagged JSON object rather than a bare string/number that would be
// ambiguous to extend later.
type recipientJSON struct {
	Everyone json.RawMessage `json:"Everyone,omitempty"`
	Peer     *PeerID         `json:"Peer,omitempty"`
}

func (r Recipient) MarshalJSON() ([]byte, error) {
	if r.Everyone {
		return json.Marshal(recipientJSON{Everyone: json.RawMessage("null")})
	}
	id := r.Peer
	return json.Marshal(recipientJSON{Peer: &id})
}

func (r *Recipient) UnmarshalJSON(data []byte) error {
	var rj recipientJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	if rj.Everyone != nil {
		*r = Recipient{Everyone: true}
		return nil
	}
	if rj.Peer != nil {
		*r = Recipient{Peer: *rj.Peer}
		return nil
	}
	return fmt.Errorf("wire: recipient has neither Everyone nor Peer: %s", data)
}

// Envelope is the full unit of transport carried over the bus: every
// message is addressed from a sender to a Recipient.
type Envelope struct {
	From PeerID    `json:"from"`
	To   Recipient `json:"to"`
	Msg  Message   `json:"msg"`
}

// Encode serializes the envelope for posting on the bus.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Decode deserializes a bus frame back into an Envelope. A decode failure
// is not fatal to the caller: per the protocol's error handling, a corrupt
// or foreign frame on the shared channel should be logged and dropped, not
// treated as a crash.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return e, nil
}

// EncodePayload encodes an arbitrary application value for a Payload
// message.
func EncodePayload(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload decodes a Payload message's raw bytes into v.
func DecodePayload(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("wire: decode payload: %w", err)
	}
	return nil
}
