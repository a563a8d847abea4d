// Package chain is the blockchain store: a hash-keyed block map with
// longest-chain tip tracking.
package chain

import (
	"errors"
	"sync"

	"github.com/triadledger/node/internal/consensus"
	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/types"
)

// ErrUnknownParent is returned by Insert when the block's parent has
// not been stored yet. Callers (gossip worker, miner worker) must
// enforce the precondition that the parent exists before inserting.
var ErrUnknownParent = errors.New("parent block not found in store")

type entry struct {
	block  *block.Block
	height uint64
}

// Store is the shared blockchain store: block map, heights, and tip.
type Store struct {
	mu     sync.RWMutex
	blocks map[types.Hash]entry
	tip    types.Hash
}

// Genesis builds the network's fixed, deterministic genesis block:
// parent all-zeros, timestamp 0, nonce 0, merkle root all-zeros, and
// the network's fixed difficulty target.
func Genesis() *block.Block {
	header := &block.Header{
		Parent:     types.Hash{},
		Nonce:      0,
		Difficulty: consensus.Target,
		Timestamp:  0,
		MerkleRoot: types.Hash{},
	}
	return block.NewBlock(header, nil)
}

// New creates a Store seeded with the genesis block at height 0; tip
// is the genesis hash.
func New() *Store {
	genesis := Genesis()
	hash := genesis.Hash()
	return &Store{
		blocks: map[types.Hash]entry{
			hash: {block: genesis, height: 0},
		},
		tip: hash,
	}
}

// Insert stores blk, computed as parent's height + 1, and promotes tip
// iff the new height is strictly greater than the current tip's. It
// returns ErrUnknownParent if blk's parent is not yet stored.
func (s *Store) Insert(blk *block.Block) (height uint64, err error) {
	parentHash := blk.Header.Parent

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.blocks[parentHash]
	if !ok {
		return 0, ErrUnknownParent
	}

	height = parent.height + 1
	hash := blk.Hash()
	s.blocks[hash] = entry{block: blk, height: height}

	if height > s.blocks[s.tip].height {
		s.tip = hash
	}
	return height, nil
}

// Tip returns the current longest-chain head.
func (s *Store) Tip() types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tip
}

// Has reports whether hash is present in the store.
func (s *Store) Has(hash types.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[hash]
	return ok
}

// Get returns the block and height stored at hash.
func (s *Store) Get(hash types.Hash) (*block.Block, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blocks[hash]
	if !ok {
		return nil, 0, false
	}
	return e.block, e.height, true
}

// Height returns the height recorded for hash.
func (s *Store) Height(hash types.Hash) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blocks[hash]
	return e.height, ok
}

// Difficulty returns the difficulty stamped in the header stored at
// hash, used by the gossip worker's parent-difficulty-coherence check.
func (s *Store) Difficulty(hash types.Hash) (types.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blocks[hash]
	if !ok {
		return types.Hash{}, false
	}
	return e.block.Header.Difficulty, true
}

// LongestChain walks parent pointers from the tip back to genesis and
// returns the hashes in genesis-to-tip order.
func (s *Store) LongestChain() []types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tipEntry := s.blocks[s.tip]
	chain := make([]types.Hash, tipEntry.height+1)

	hash := s.tip
	for i := int(tipEntry.height); i >= 0; i-- {
		chain[i] = hash
		e := s.blocks[hash]
		hash = e.block.Header.Parent
	}
	return chain
}
