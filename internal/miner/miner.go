// Package miner assembles candidate blocks from the mempool and
// searches for a nonce that meets the network's fixed difficulty
// target, emitting finished blocks on a single-producer channel.
package miner

import (
	"math/rand"
	"time"

	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/consensus"
	"github.com/triadledger/node/internal/control"
	"github.com/triadledger/node/internal/log"
	"github.com/triadledger/node/internal/mempool"
	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// BlockSize is the maximum number of pending transactions drained into
// one candidate block.
const BlockSize = 50

// Miner is the block-assembly and nonce-search actor. It holds no
// validation logic of its own beyond the PoW check: blocks it emits
// are validated and applied by the miner worker.
type Miner struct {
	pool  *mempool.Pool
	chain *chain.Store
	out   chan<- *block.Block
	ctrl  chan control.Signal

	haveBatch   bool
	batch       []*tx.SignedTransaction
	batchHashes []types.Hash
}

// New creates a Miner reading from pool and chain, emitting finished
// blocks on out.
func New(pool *mempool.Pool, c *chain.Store, out chan<- *block.Block) *Miner {
	return &Miner{
		pool:  pool,
		chain: c,
		out:   out,
		ctrl:  make(chan control.Signal, 1),
	}
}

// Control returns the miner's control channel: Start(λ), Update, Exit.
func (m *Miner) Control() chan<- control.Signal {
	return m.ctrl
}

// Run blocks the calling goroutine until a Start signal arrives, then
// mines until Exit. Update is a wired no-op hook for future
// tip-change wakeups.
func (m *Miner) Run() {
	for {
		sig := <-m.ctrl // Paused: block on the control channel.
		switch sig.Kind {
		case control.Exit:
			return
		case control.Start:
			if m.loop(sig.Interval) {
				return
			}
		case control.Update:
			// no-op
		}
	}
}

// loop runs the mining iterations at interval microseconds, polling
// the control channel non-blockingly between iterations. Returns true
// if it exited because of an Exit signal.
func (m *Miner) loop(intervalMicros int) bool {
	logger := log.WithComponent("miner")

	for {
		select {
		case sig := <-m.ctrl:
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

		m.fillBatch()

		header := &block.Header{
			Parent:    m.chain.Tip(),
			Timestamp: uint64(time.Now().UnixMilli()),
		}
		header.Difficulty = consensus.Target
		header.MerkleRoot = block.RootOf(hashablesOf(m.batch))
		header.Nonce = rand.Uint32()

		if header.MeetsDifficulty() {
			blk := block.NewBlock(header, m.batch)
			m.pool.RemoveAll(m.batchHashes)
			m.haveBatch = false
			m.batch = nil
			m.batchHashes = nil

			m.out <- blk
			logger.Info().Str("hash", blk.Hash().String()).Msg("mined block")
		}

		if intervalMicros > 0 {
			time.Sleep(time.Duration(intervalMicros) * time.Microsecond)
		}
	}
}

// fillBatch drains up to BlockSize pending transactions from the
// mempool if no batch is currently buffered.
func (m *Miner) fillBatch() {
	if m.haveBatch {
		return
	}
	m.batch = m.pool.Drain(BlockSize)
	m.batchHashes = make([]types.Hash, len(m.batch))
	for i, st := range m.batch {
		m.batchHashes[i] = st.Hash()
	}
	m.haveBatch = true
}

func hashablesOf(content []*tx.SignedTransaction) []block.Hashable {
	items := make([]block.Hashable, len(content))
	for i, st := range content {
		items[i] = st
	}
	return items
}
