package control

import (
	"testing"

	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/state"
)

func TestNode_LongestChainAndStateAt(t *testing.T) {
	c := chain.New()
	idx := state.NewIndex(c.Tip(), state.Snapshot{})
	n := &Node{Chain: c, Index: idx}

	longest := n.LongestChain()
	if len(longest) != 1 || longest[0] != c.Tip() {
		t.Fatalf("LongestChain = %v, want [genesis]", longest)
	}

	if txs := n.LongestChainTx(); len(txs) != 0 {
		t.Errorf("genesis carries no transactions, got %d", len(txs))
	}

	if _, ok := n.StateAt(c.Tip()); !ok {
		t.Error("StateAt should find the genesis snapshot")
	}
	if _, ok := n.StateAt(chain.Genesis().Header.Parent); ok {
		t.Error("StateAt should not find an unrelated hash")
	}
}
