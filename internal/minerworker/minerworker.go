// Package minerworker is the single consumer of the miner's
// finished-block channel: it validates each block against its
// parent's state, updates the chain and state index, and announces
// acceptance to the network.
package minerworker

import (
	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/control"
	"github.com/triadledger/node/internal/log"
	"github.com/triadledger/node/internal/message"
	"github.com/triadledger/node/internal/server"
	"github.com/triadledger/node/internal/state"
	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/types"
)

// Worker consumes mined blocks, applies them, and announces them.
type Worker struct {
	in    <-chan *block.Block
	chain *chain.Store
	index *state.Index
	out   server.Broadcaster
	ctrl  chan control.Signal
}

// New creates a Worker reading finished blocks from in.
func New(in <-chan *block.Block, c *chain.Store, index *state.Index, out server.Broadcaster) *Worker {
	return &Worker{
		in:    in,
		chain: c,
		index: index,
		out:   out,
		ctrl:  make(chan control.Signal, 1),
	}
}

// Control returns the worker's control channel.
func (w *Worker) Control() chan<- control.Signal {
	return w.ctrl
}

// Run consumes blocks from in and control signals from its control
// channel until Exit.
func (w *Worker) Run() {
	logger := log.WithComponent("miner-worker")

	for {
		select {
		case blk := <-w.in:
			if err := w.accept(blk); err != nil {
				logger.Debug().Err(err).Str("hash", blk.Hash().String()).Msg("rejected mined block")
			}
		case sig := <-w.ctrl:
			switch sig.Kind {
			case control.Exit:
				return
			case control.Start, control.Update:
				// no-op: this actor has no interval to start or tip hook.
			}
		}
	}
}

// accept runs validate-and-apply against the parent's state and, on
// success, inserts blk into the chain and state index and broadcasts
// its hash.
func (w *Worker) accept(blk *block.Block) error {
	parentState, ok := w.index.Get(blk.Header.Parent)
	if !ok {
		return chain.ErrUnknownParent
	}

	next, err := state.ApplyBlock(parentState, blk.Content)
	if err != nil {
		return err
	}

	if _, err := w.chain.Insert(blk); err != nil {
		return err
	}
	w.index.Set(blk.Hash(), next)

	w.out.Broadcast(message.NewNewBlockHashes([]types.Hash{blk.Hash()}))
	return nil
}
