package chain

import (
	"math/rand"
	"testing"

	"github.com/triadledger/node/internal/consensus"
	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/types"
)

// mineChild brute-forces a nonce so the returned block meets the
// network's fixed target, parented at parent.
func mineChild(t *testing.T, parent types.Hash) *block.Block {
	t.Helper()
	header := &block.Header{Parent: parent, Difficulty: consensus.Target}
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		if header.MeetsDifficulty() {
			return block.NewBlock(header, nil)
		}
		if nonce > 2_000_000 {
			t.Fatal("failed to mine a test block within budget")
		}
	}
}

func TestNew_SeededWithGenesis(t *testing.T) {
	s := New()
	genesis := Genesis()

	if s.Tip() != genesis.Hash() {
		t.Fatalf("Tip() = %v, want genesis hash %v", s.Tip(), genesis.Hash())
	}
	height, ok := s.Height(genesis.Hash())
	if !ok || height != 0 {
		t.Fatalf("Height(genesis) = %d, %v; want 0, true", height, ok)
	}
}

// Scenario: Linear insert. Starting from genesis, inserting a single
// child must become the new tip at height 1.
func TestInsert_LinearInsert(t *testing.T) {
	s := New()
	genesisHash := s.Tip()

	b1 := mineChild(t, genesisHash)
	height, err := s.Insert(b1)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if height != 1 {
		t.Fatalf("Insert height = %d, want 1", height)
	}
	if s.Tip() != b1.Hash() {
		t.Fatalf("Tip() = %v, want %v", s.Tip(), b1.Hash())
	}
}

func TestInsert_UnknownParentRejected(t *testing.T) {
	s := New()
	orphan := mineChild(t, types.Hash{0xde, 0xad})

	if _, err := s.Insert(orphan); err != ErrUnknownParent {
		t.Fatalf("Insert() error = %v, want ErrUnknownParent", err)
	}
}

func TestInsert_EqualHeightKeepsFirstSeenTip(t *testing.T) {
	s := New()
	genesisHash := s.Tip()

	first := mineChild(t, genesisHash)
	if _, err := s.Insert(first); err != nil {
		t.Fatalf("Insert(first): %v", err)
	}

	// mineChild is deterministic, so a sibling distinct from first needs
	// a different header field before its nonce search.
	header := &block.Header{Parent: genesisHash, Difficulty: consensus.Target, Timestamp: 1}
	for !header.MeetsDifficulty() {
		header.Nonce++
	}
	second := block.NewBlock(header, nil)
	if second.Hash() == first.Hash() {
		t.Fatal("second must be a distinct block at the same height as first")
	}
	if _, err := s.Insert(second); err != nil {
		t.Fatalf("Insert(second): %v", err)
	}

	if s.Tip() != first.Hash() {
		t.Fatalf("Tip() = %v, want the first-seen block %v at the tied height", s.Tip(), first.Hash())
	}
}

// Scenario: Random-parent stress. Inserting 1000 blocks with randomly
// chosen parents must leave the tip at the max-height block, ties
// broken in favor of whichever block was inserted first.
func TestInsert_RandomParentStress(t *testing.T) {
	s := New()
	genesisHash := s.Tip()

	hashes := []types.Hash{genesisHash}
	heights := map[types.Hash]uint64{genesisHash: 0}

	rng := rand.New(rand.NewSource(1))
	bestHash := genesisHash
	bestHeight := uint64(0)

	for i := 0; i < 1000; i++ {
		parent := hashes[rng.Intn(len(hashes))]
		b := mineChild(t, parent)

		height, err := s.Insert(b)
		if err != nil {
			t.Fatalf("Insert #%d: %v", i, err)
		}
		hash := b.Hash()
		hashes = append(hashes, hash)
		heights[hash] = height

		if height > bestHeight {
			bestHeight = height
			bestHash = hash
		}
	}

	if s.Tip() != bestHash {
		t.Fatalf("Tip() = %v, want the max-height block %v (height %d)", s.Tip(), bestHash, bestHeight)
	}

	// No stored block may have strictly greater height than the tip.
	tipHeight, ok := s.Height(s.Tip())
	if !ok {
		t.Fatal("tip must be a stored block")
	}
	for hash, h := range heights {
		if h > tipHeight {
			t.Fatalf("block %v has height %d > tip height %d", hash, h, tipHeight)
		}
	}
}

func TestInsert_HeightIsParentHeightPlusOne(t *testing.T) {
	s := New()
	b1 := mineChild(t, s.Tip())
	h1, err := s.Insert(b1)
	if err != nil {
		t.Fatalf("Insert(b1): %v", err)
	}

	b2 := mineChild(t, b1.Hash())
	h2, err := s.Insert(b2)
	if err != nil {
		t.Fatalf("Insert(b2): %v", err)
	}

	if h2 != h1+1 {
		t.Fatalf("height(b2) = %d, want height(b1)+1 = %d", h2, h1+1)
	}
}

func TestHasGetDifficulty(t *testing.T) {
	s := New()
	b1 := mineChild(t, s.Tip())
	if s.Has(b1.Hash()) {
		t.Fatal("Has should be false before insert")
	}
	if _, err := s.Insert(b1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !s.Has(b1.Hash()) {
		t.Fatal("Has should be true after insert")
	}

	got, height, ok := s.Get(b1.Hash())
	if !ok || got != b1 || height != 1 {
		t.Fatalf("Get() = %v, %d, %v; want %v, 1, true", got, height, ok, b1)
	}

	diff, ok := s.Difficulty(b1.Hash())
	if !ok || diff != consensus.Target {
		t.Fatalf("Difficulty() = %v, %v; want %v, true", diff, ok, consensus.Target)
	}

	if _, ok := s.Difficulty(types.Hash{0xff}); ok {
		t.Fatal("Difficulty() should report false for an unstored hash")
	}
}

func TestLongestChain_GenesisToTipOrder(t *testing.T) {
	s := New()
	genesisHash := s.Tip()
	b1 := mineChild(t, genesisHash)
	if _, err := s.Insert(b1); err != nil {
		t.Fatalf("Insert(b1): %v", err)
	}
	b2 := mineChild(t, b1.Hash())
	if _, err := s.Insert(b2); err != nil {
		t.Fatalf("Insert(b2): %v", err)
	}

	chain := s.LongestChain()
	want := []types.Hash{genesisHash, b1.Hash(), b2.Hash()}
	if len(chain) != len(want) {
		t.Fatalf("LongestChain() = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("LongestChain()[%d] = %v, want %v", i, chain[i], want[i])
		}
	}
}
