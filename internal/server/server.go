// Package server is the node's network boundary: a broadcast sink the
// core actors fan messages out through, and a per-peer bidirectional
// channel for directed replies and requests. The TCP socket layer and
// peer-handshake framing underneath are deliberate external
// collaborators; this package's libp2p-backed implementation satisfies
// the interfaces without the core depending on their details.
package server

import "github.com/triadledger/node/internal/message"

// Broadcaster fans a message out to every connected peer,
// fire-and-forget. Implementations must not block the caller on
// network I/O.
type Broadcaster interface {
	Broadcast(msg message.Message)
}

// Peer is a way to reply directly to one connected node (as opposed to
// broadcasting). Messages it sends us arrive on the shared Inbound
// channel, tagged with this Peer as their source.
type Peer interface {
	ID() string
	Send(msg message.Message) error
}

// Inbound pairs a received message with the peer it arrived from, the
// unit of work the gossip worker pool consumes from its bounded
// inbound channel.
type Inbound struct {
	From Peer
	Msg  message.Message
}
