// Package gossip is the protocol worker: a pool of goroutines handling
// the eight inbound message kinds against the shared chain, mempool,
// and state index, including orphan buffering and cascading
// un-orphan acceptance.
package gossip

import (
	"github.com/rs/zerolog"

	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/log"
	"github.com/triadledger/node/internal/mempool"
	"github.com/triadledger/node/internal/message"
	"github.com/triadledger/node/internal/server"
	"github.com/triadledger/node/internal/state"
	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// shared is the state every pool worker reads and mutates; only the
// orphan buffer (below) is private to a single worker.
type shared struct {
	pool  *mempool.Pool
	chain *chain.Store
	index *state.Index
	out   server.Broadcaster
}

// Pool is the gossip worker pool: each goroutine consumes from the
// same bounded inbound channel, so any given message is handled by
// exactly one worker.
type Pool struct {
	shared *shared
	in     <-chan server.Inbound
}

// New creates a Pool reading inbound messages from in.
func New(in <-chan server.Inbound, pool *mempool.Pool, c *chain.Store, index *state.Index, out server.Broadcaster) *Pool {
	return &Pool{
		shared: &shared{pool: pool, chain: c, index: index, out: out},
		in:     in,
	}
}

// Run starts n worker goroutines, each with its own orphan buffer, and
// blocks until every worker has returned (which happens when in is
// closed).
func (p *Pool) Run(n int) {
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			w := &worker{shared: p.shared, logger: log.WithComponent("gossip")}
			w.run(p.in)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
}

// worker owns one pool goroutine's private orphan buffer: blocks whose
// parent has not yet been seen by this goroutine.
type worker struct {
	shared  *shared
	orphans []*block.Block
	logger  zerolog.Logger
}

func (w *worker) run(in <-chan server.Inbound) {
	for inbound := range in {
		w.handle(inbound)
	}
}

func (w *worker) handle(inbound server.Inbound) {
	peer, msg := inbound.From, inbound.Msg

	switch msg.Kind {
	case message.Ping:
		w.handlePing(peer, msg)
	case message.Pong:
		w.handlePong(msg)
	case message.NewBlockHashes:
		w.handleNewBlockHashes(peer, msg)
	case message.GetBlocks:
		w.handleGetBlocks(peer, msg)
	case message.NewTransactionHashes:
		w.handleNewTransactionHashes(peer, msg)
	case message.GetTransactions:
		w.handleGetTransactions(peer, msg)
	case message.Transactions:
		w.handleTransactions(msg)
	case message.Blocks:
		w.handleBlocks(peer, msg)
	default:
		w.logger.Warn().Str("kind", msg.Kind.String()).Msg("unrecognized message kind")
	}
}

func (w *worker) handlePing(peer server.Peer, msg message.Message) {
	if err := peer.Send(message.NewPong(msg.Text)); err != nil {
		w.logger.Debug().Err(err).Msg("failed to reply to ping")
	}
}

func (w *worker) handlePong(msg message.Message) {
	w.logger.Debug().Str("nonce", msg.Text).Msg("pong")
}

func (w *worker) handleNewBlockHashes(peer server.Peer, msg message.Message) {
	var missing []types.Hash
	for _, h := range msg.Hashes {
		if !w.shared.chain.Has(h) {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return
	}
	if err := peer.Send(message.NewGetBlocks(missing)); err != nil {
		w.logger.Debug().Err(err).Msg("failed to request missing blocks")
	}
}

func (w *worker) handleGetBlocks(peer server.Peer, msg message.Message) {
	blocks := make([]*block.Block, 0, len(msg.Hashes))
	for _, h := range msg.Hashes {
		b, _, ok := w.shared.chain.Get(h)
		if !ok {
			return // partial reply forbidden: drop the whole request
		}
		blocks = append(blocks, b)
	}
	if err := peer.Send(message.NewBlocksMsg(blocks)); err != nil {
		w.logger.Debug().Err(err).Msg("failed to reply with requested blocks")
	}
}

func (w *worker) handleNewTransactionHashes(peer server.Peer, msg message.Message) {
	var unknown []types.Hash
	for _, h := range msg.Hashes {
		if !w.shared.pool.Has(h) {
			unknown = append(unknown, h)
		}
	}
	if len(unknown) == 0 {
		return
	}
	if err := peer.Send(message.NewGetTransactions(unknown)); err != nil {
		w.logger.Debug().Err(err).Msg("failed to request unknown transactions")
	}
}

func (w *worker) handleGetTransactions(peer server.Peer, msg message.Message) {
	txs := make([]*tx.SignedTransaction, 0, len(msg.Hashes))
	for _, h := range msg.Hashes {
		st, ok := w.shared.pool.Get(h)
		if !ok {
			return // partial reply forbidden: drop the whole request
		}
		txs = append(txs, st)
	}
	if err := peer.Send(message.NewTransactionsMsg(txs)); err != nil {
		w.logger.Debug().Err(err).Msg("failed to reply with requested transactions")
	}
}

func (w *worker) handleTransactions(msg message.Message) {
	var reannounce []types.Hash
	for _, st := range msg.Transactions {
		if !st.Verify() {
			continue
		}
		hash := st.Hash()
		if w.shared.pool.Has(hash) {
			continue
		}
		w.shared.pool.Insert(st)
		reannounce = append(reannounce, hash)
	}
	if len(reannounce) > 0 {
		w.shared.out.Broadcast(message.NewNewTransactionHashes(reannounce))
	}
}

// handleBlocks runs the PoW/duplicate/parent-present/parent-absent
// algorithm over each incoming block, then cascades the orphan buffer
// against every newly-accepted block before returning.
func (w *worker) handleBlocks(peer server.Peer, msg message.Message) {
	var newBlocks []types.Hash

	for _, b := range msg.Blocks {
		if accepted, hash := w.tryAccept(b, peer); accepted {
			newBlocks = append(newBlocks, hash)
		}
	}

	// Cascade: a freshly-accepted block may be the missing parent of an
	// orphan. Traversal proceeds by index over newBlocks so blocks
	// accepted by the cascade are themselves considered as parents.
	for i := 0; i < len(newBlocks); i++ {
		parent := newBlocks[i]
		for j := 0; j < len(w.orphans); j++ {
			if w.orphans[j].Header.Parent != parent {
				continue
			}
			orphan := w.orphans[j]
			w.orphans = append(w.orphans[:j], w.orphans[j+1:]...)
			j--
			if accepted, hash := w.acceptWithKnownParent(orphan); accepted {
				newBlocks = append(newBlocks, hash)
			}
		}
	}

	if len(newBlocks) > 0 {
		w.shared.out.Broadcast(message.NewNewBlockHashes(newBlocks))
	}
}

// tryAccept runs the PoW, duplicate, parent-present, and parent-absent
// checks for one inbound block.
func (w *worker) tryAccept(b *block.Block, peer server.Peer) (accepted bool, hash types.Hash) {
	hash = b.Hash()

	if !b.Header.MeetsDifficulty() {
		return false, hash
	}
	if w.shared.chain.Has(hash) {
		return false, hash
	}

	if _, ok := w.shared.chain.Get(b.Header.Parent); ok {
		return w.acceptWithKnownParent(b)
	}

	w.orphans = append(w.orphans, b)
	if err := peer.Send(message.NewGetBlocks([]types.Hash{b.Header.Parent})); err != nil {
		w.logger.Debug().Err(err).Msg("failed to request orphan's parent")
	}
	return false, hash
}

// acceptWithKnownParent applies the difficulty-coherence and
// validate-and-apply checks for a block whose parent is already
// present in the store, then inserts it.
func (w *worker) acceptWithKnownParent(b *block.Block) (accepted bool, hash types.Hash) {
	hash = b.Hash()

	parentDifficulty, ok := w.shared.chain.Difficulty(b.Header.Parent)
	if !ok || b.Header.Difficulty != parentDifficulty {
		return false, hash
	}

	parentState, ok := w.shared.index.Get(b.Header.Parent)
	if !ok {
		return false, hash
	}
	next, err := state.ApplyBlock(parentState, b.Content)
	if err != nil {
		return false, hash
	}

	if _, err := w.shared.chain.Insert(b); err != nil {
		return false, hash
	}
	w.shared.index.Set(hash, next)
	return true, hash
}
