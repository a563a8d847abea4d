// Package generator is the transaction-generation actor: it spends the
// first output this node owns on every iteration, following a fixed
// three-way split policy, and broadcasts the result.
package generator

import (
	"time"

	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/control"
	"github.com/triadledger/node/internal/log"
	"github.com/triadledger/node/internal/mempool"
	"github.com/triadledger/node/internal/message"
	"github.com/triadledger/node/internal/server"
	"github.com/triadledger/node/internal/state"
	"github.com/triadledger/node/pkg/crypto"
	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// Generator is one cohort member's spending loop.
type Generator struct {
	key   *crypto.PrivateKey
	addr  types.Address
	peer0 types.Address
	peer1 types.Address
	pool  *mempool.Pool
	index *state.Index
	chain *chain.Store
	out   server.Broadcaster
	ctrl  chan control.Signal
}

// New creates a Generator for the node identified by key, spending to
// peer0 and peer1 per the output-split policy.
func New(key *crypto.PrivateKey, peer0, peer1 types.Address, pool *mempool.Pool, index *state.Index, c *chain.Store, out server.Broadcaster) *Generator {
	return &Generator{
		key:   key,
		addr:  crypto.AddressFromPubKey(key.PublicKey()),
		peer0: peer0,
		peer1: peer1,
		pool:  pool,
		index: index,
		chain: c,
		out:   out,
		ctrl:  make(chan control.Signal, 1),
	}
}

// Control returns the generator's control channel: Start(θ), Update, Exit.
func (g *Generator) Control() chan<- control.Signal {
	return g.ctrl
}

// Run blocks until a Start signal arrives, then spends until Exit.
func (g *Generator) Run() {
	for {
		sig := <-g.ctrl
		switch sig.Kind {
		case control.Exit:
			return
		case control.Start:
			if g.loop(sig.Interval) {
				return
			}
		case control.Update:
			// no-op
		}
	}
}

func (g *Generator) loop(intervalMicros int) bool {
	logger := log.WithComponent("generator")

	prevTip := g.chain.Tip()
	snapshot, _ := g.index.Get(prevTip)
	snapshot = snapshot.Clone()

	for {
		select {
		case sig := <-g.ctrl:
			switch sig.Kind {
			case control.Exit:
				return true
			case control.Start:
				intervalMicros = sig.Interval
			case control.Update:
				// no-op
			}
		default:
		}

		tip := g.chain.Tip()
		if tip != prevTip {
			if s, ok := g.index.Get(tip); ok {
				snapshot = s.Clone()
			}
			prevTip = tip
		}

		input, balance, found := g.findOwnedUTXO(snapshot)
		if found && balance > 0 {
			signed := g.buildAndSign(input, balance)
			hash := signed.Hash()

			if !g.pool.Has(hash) {
				g.pool.Insert(signed)
			}
			g.out.Broadcast(message.NewNewTransactionHashes([]types.Hash{hash}))

			if err := state.Apply(snapshot, signed); err != nil {
				logger.Warn().Err(err).Msg("locally-built transaction failed to apply to snapshot")
			}
		}

		if intervalMicros > 0 {
			time.Sleep(time.Duration(intervalMicros) * time.Microsecond)
		}
	}
}

// findOwnedUTXO scans snapshot for the first entry owned by this node.
func (g *Generator) findOwnedUTXO(snapshot state.Snapshot) (state.Outpoint, uint32, bool) {
	for op, entry := range snapshot {
		if entry.Recipient == g.addr {
			return op, entry.Value, true
		}
	}
	return state.Outpoint{}, 0, false
}

// buildAndSign builds and signs a transaction spending input for
// balance, per the fixed output-split policy: v1 = B/3, v2 = (B-v1)/2,
// v3 = B-v1-v2, paying v1 to peer0 and v2, v3 to peer1. If any part is
// zero, a single output of the full balance goes to peer0 instead.
func (g *Generator) buildAndSign(input state.Outpoint, balance uint32) *tx.SignedTransaction {
	v1 := balance / 3
	v2 := (balance - v1) / 2
	v3 := balance - v1 - v2

	var outputs []tx.Output
	if v1 == 0 || v2 == 0 || v3 == 0 {
		outputs = []tx.Output{{Recipient: g.peer0, Value: balance}}
	} else {
		outputs = []tx.Output{
			{Recipient: g.peer0, Value: v1},
			{Recipient: g.peer1, Value: v2},
			{Recipient: g.peer1, Value: v3},
		}
	}

	txn := tx.Transaction{
		Inputs:  []tx.Input{{PrevTrans: input.TxHash, Index: input.Index}},
		Outputs: outputs,
	}
	return tx.Sign(txn, g.key)
}
