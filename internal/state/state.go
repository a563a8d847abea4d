// Package state tracks the UTXO ledger: per-block snapshots of unspent
// outputs, and the deterministic rule for applying a signed
// transaction to a snapshot during block acceptance.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// Outpoint identifies an output by the hash of the transaction that
// created it and its position among that transaction's outputs.
type Outpoint struct {
	TxHash types.Hash
	Index  uint8
}

// Entry is the value and owner of an unspent output.
type Entry struct {
	Value     uint32
	Recipient types.Address
}

// Snapshot is a point-in-time UTXO set.
type Snapshot map[Outpoint]Entry

// Clone returns an independent copy of s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Validation errors surfaced by Apply. Per the spend-validity rules, a
// malformed transaction is always discarded by its caller, not
// retried or partially applied.
var (
	ErrBadSignature  = errors.New("signature does not verify")
	ErrUnknownInput  = errors.New("referenced input is not in the state snapshot")
	ErrWrongOwner    = errors.New("input recipient does not match the signer's address")
	ErrValueMismatch = errors.New("sum of outputs exceeds sum of inputs")
)

// Apply validates st against s and, on success, mutates s in place:
// spent inputs are removed, new outputs are inserted keyed by
// (tx-hash, output-position). s is left unchanged on error.
func Apply(s Snapshot, st *tx.SignedTransaction) error {
	if !st.Verify() {
		return ErrBadSignature
	}

	sender := st.SenderAddress()
	var inputSum uint64
	for _, in := range st.Transaction.Inputs {
		op := Outpoint{TxHash: in.PrevTrans, Index: in.Index}
		entry, ok := s[op]
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownInput, op)
		}
		if entry.Recipient != sender {
			return ErrWrongOwner
		}
		inputSum += uint64(entry.Value)
	}

	if st.Transaction.OutputSum() > inputSum {
		return ErrValueMismatch
	}

	txHash := st.Hash()
	for _, in := range st.Transaction.Inputs {
		delete(s, Outpoint{TxHash: in.PrevTrans, Index: in.Index})
	}
	for i, out := range st.Transaction.Outputs {
		s[Outpoint{TxHash: txHash, Index: uint8(i)}] = Entry{
			Value:     out.Value,
			Recipient: out.Recipient,
		}
	}
	return nil
}

// ApplyBlock validates and applies every transaction in content, in
// order, against a clone of parent. If any transaction fails, the
// whole block is rejected and parent is left untouched: a block either
// commits in full or not at all.
func ApplyBlock(parent Snapshot, content []*tx.SignedTransaction) (Snapshot, error) {
	next := parent.Clone()
	for i, st := range content {
		if err := Apply(next, st); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return next, nil
}

// Index is the per-block-hash state map: one snapshot for every block
// ever accepted into the chain store.
type Index struct {
	mu   sync.RWMutex
	byID map[types.Hash]Snapshot
}

// NewIndex creates an Index seeded with genesisHash mapped to
// genesisState.
func NewIndex(genesisHash types.Hash, genesisState Snapshot) *Index {
	return &Index{
		byID: map[types.Hash]Snapshot{genesisHash: genesisState},
	}
}

// Get returns the snapshot stored for hash, and whether it was found.
func (idx *Index) Get(hash types.Hash) (Snapshot, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.byID[hash]
	return s, ok
}

// Set records snapshot for hash.
func (idx *Index) Set(hash types.Hash, snapshot Snapshot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byID[hash] = snapshot
}
