// Package control defines the typed control-signal channel the miner,
// the generator and the miner worker listen on, and the read-only
// introspection contract the administrative surface is specified
// against. The gossip pool has no control channel: its workers run
// until their inbound channel is closed.
package control

import (
	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/state"
	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// Kind identifies a control signal.
type Kind int

const (
	// Start begins or resumes an actor's loop at the given interval.
	Start Kind = iota
	// Update is wired into every actor's control channel but is a
	// no-op in the core; it is a hook reserved for future tip-change
	// wakeups.
	Update
	// Exit terminates the actor's loop. In-flight network operations
	// are abandoned; there is no graceful drain.
	Exit
)

// Signal is sent on an actor's control channel. Interval is the
// microsecond sleep passed to Start (ignored for Update and Exit).
type Signal struct {
	Kind     Kind
	Interval int
}

// ChainIntrospector is the read-only view of node state the
// administrative surface queries: the external collaborator outside
// this package's scope, specified here only as the interface it
// depends on.
type ChainIntrospector interface {
	// LongestChain returns the block hashes from genesis to tip.
	LongestChain() []types.Hash
	// LongestChainTx returns the signed transactions carried by every
	// block in the longest chain, in chain order.
	LongestChainTx() []*tx.SignedTransaction
	// StateAt returns the UTXO snapshot recorded for a block hash.
	StateAt(hash types.Hash) (state.Snapshot, bool)
}

// Node is the concrete ChainIntrospector satisfied by a running node's
// chain store and state index, wired together at bootstrap. It is
// what a future administrative HTTP surface would be handed.
type Node struct {
	Chain *chain.Store
	Index *state.Index
}

// LongestChain returns the block hashes from genesis to tip.
func (n *Node) LongestChain() []types.Hash {
	return n.Chain.LongestChain()
}

// LongestChainTx returns every signed transaction carried by the
// longest chain, in chain order.
func (n *Node) LongestChainTx() []*tx.SignedTransaction {
	var out []*tx.SignedTransaction
	for _, hash := range n.Chain.LongestChain() {
		blk, _, ok := n.Chain.Get(hash)
		if !ok {
			continue
		}
		out = append(out, blk.Content...)
	}
	return out
}

// StateAt returns the UTXO snapshot recorded for hash.
func (n *Node) StateAt(hash types.Hash) (state.Snapshot, bool) {
	return n.Index.Get(hash)
}
