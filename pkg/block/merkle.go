package block

import (
	"github.com/triadledger/node/pkg/crypto"
	"github.com/triadledger/node/pkg/types"
)

// Hashable is any item a Merkle tree can be built over; SignedTransaction
// satisfies it.
type Hashable interface {
	Hash() types.Hash
}

// LeafHashes computes the leaf-level hash of each item, in order.
func LeafHashes(items []Hashable) []types.Hash {
	hashes := make([]types.Hash, len(items))
	for i, it := range items {
		hashes[i] = it.Hash()
	}
	return hashes
}

// buildLevels returns every level of the tree from leaves (index 0,
// duplicated if odd) up to the single root hash.
//
// Algorithm:
//   - 0 hashes: the tree has no levels; Root reports the zero hash.
//   - 1 hash: the single leaf is the root.
//   - Otherwise: pairwise hash, duplicating the last entry of a level
//     with an odd count >1, then recurse until one hash remains.
func buildLevels(leaves []types.Hash) [][]types.Hash {
	if len(leaves) == 0 {
		return nil
	}

	level := make([]types.Hash, len(leaves))
	copy(level, leaves)
	levels := [][]types.Hash{level}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
			levels[len(levels)-1] = level
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return levels
}

// Root computes the Merkle root of an ordered sequence of leaf hashes.
func Root(leaves []types.Hash) types.Hash {
	levels := buildLevels(leaves)
	if levels == nil {
		return types.Hash{}
	}
	return levels[len(levels)-1][0]
}

// RootOf computes the Merkle root over an ordered sequence of Hashable
// items (e.g. a block's signed transactions).
func RootOf(items []Hashable) types.Hash {
	return Root(LeafHashes(items))
}

// Proof returns the sibling hash at each level walking up from leaf i.
// Returns nil if i is out of range.
func Proof(leaves []types.Hash, i int) []types.Hash {
	if i < 0 || i >= len(leaves) {
		return nil
	}
	levels := buildLevels(leaves)

	var proof []types.Hash
	idx := i
	for lvl := 0; lvl < len(levels)-1; lvl++ {
		level := levels[lvl]
		var sibling int
		if idx%2 == 0 {
			sibling = idx + 1
		} else {
			sibling = idx - 1
		}
		proof = append(proof, level[sibling])
		idx /= 2
	}
	return proof
}

// Verify recomputes the root from leafHash and its proof, walking
// upward: at each step the current hash combines with the next proof
// element as (current, sibling) if index is even, else (sibling,
// current); index halves each step. Returns false if index is out of
// range or leafCount is zero.
func Verify(root types.Hash, leafHash types.Hash, proof []types.Hash, index, leafCount int) bool {
	if leafCount == 0 || index < 0 || index >= leafCount {
		return false
	}

	current := leafHash
	idx := index
	for _, sibling := range proof {
		if idx%2 == 0 {
			current = crypto.HashConcat(current, sibling)
		} else {
			current = crypto.HashConcat(sibling, current)
		}
		idx /= 2
	}

	return current == root
}
