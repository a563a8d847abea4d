// Package mempool is the pending-transaction pool: a hash-indexed,
// idempotent-insert set of signed transactions with no eviction policy
// or size cap.
package mempool

import (
	"sync"

	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// Pool is the shared mempool, guarded by one RWMutex per the
// chain-state-mempool lock ordering.
type Pool struct {
	mu     sync.RWMutex
	byHash map[types.Hash]*tx.SignedTransaction
	order  []types.Hash
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{byHash: make(map[types.Hash]*tx.SignedTransaction)}
}

// Insert adds st if its hash is not already present. Returns true if
// it was newly inserted (first writer wins).
func (p *Pool) Insert(st *tx.SignedTransaction) bool {
	hash := st.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[hash]; exists {
		return false
	}
	p.byHash[hash] = st
	p.order = append(p.order, hash)
	return true
}

// Has reports whether hash is present in the pool.
func (p *Pool) Has(hash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Get returns the transaction stored at hash.
func (p *Pool) Get(hash types.Hash) (*tx.SignedTransaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.byHash[hash]
	return st, ok
}

// Remove deletes hash from the pool, if present.
func (p *Pool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash types.Hash) {
	if _, ok := p.byHash[hash]; !ok {
		return
	}
	delete(p.byHash, hash)
	for i, h := range p.order {
		if h == hash {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// Drain removes and returns up to n transactions in insertion order.
func (p *Pool) Drain(n int) []*tx.SignedTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > len(p.order) {
		n = len(p.order)
	}
	batch := make([]*tx.SignedTransaction, n)
	for i := 0; i < n; i++ {
		hash := p.order[i]
		batch[i] = p.byHash[hash]
	}
	for i := 0; i < n; i++ {
		p.removeLocked(p.order[0])
	}
	return batch
}

// RemoveAll removes every hash in hashes from the pool.
func (p *Pool) RemoveAll(hashes []types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.removeLocked(h)
	}
}
