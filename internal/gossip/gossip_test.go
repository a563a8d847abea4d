package gossip

import (
	"testing"
	"time"

	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/log"
	"github.com/triadledger/node/internal/mempool"
	"github.com/triadledger/node/internal/message"
	"github.com/triadledger/node/internal/server"
	"github.com/triadledger/node/internal/state"
	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/crypto"
	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

type fakePeer struct {
	id   string
	sent chan message.Message
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, sent: make(chan message.Message, 16)}
}

func (f *fakePeer) ID() string { return f.id }
func (f *fakePeer) Send(msg message.Message) error {
	f.sent <- msg
	return nil
}

type fakeBroadcaster struct {
	sent chan message.Message
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{sent: make(chan message.Message, 16)}
}

func (f *fakeBroadcaster) Broadcast(msg message.Message) { f.sent <- msg }

func newTestWorker() (*worker, *chain.Store, *state.Index, *mempool.Pool, *fakeBroadcaster) {
	c := chain.New()
	idx := state.NewIndex(c.Tip(), state.Snapshot{})
	pool := mempool.New()
	bc := newFakeBroadcaster()
	w := &worker{shared: &shared{pool: pool, chain: c, index: idx, out: bc}, logger: log.WithComponent("gossip-test")}
	return w, c, idx, pool, bc
}

func mineChild(t *testing.T, parent types.Hash, content []*tx.SignedTransaction) *block.Block {
	t.Helper()
	header := &block.Header{Parent: parent, Difficulty: types.MustHexToHash(
		"000ff93a75a75895a351786dd7a188515173f6928a8af8c9baa4dcff268a4f0f")}
	header.MerkleRoot = block.RootOf(hashablesOf(content))
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		if header.MeetsDifficulty() {
			return block.NewBlock(header, content)
		}
		if nonce > 2_000_000 {
			t.Fatal("failed to mine a test block within budget")
		}
	}
}

func hashablesOf(content []*tx.SignedTransaction) []block.Hashable {
	out := make([]block.Hashable, len(content))
	for i, st := range content {
		out[i] = st
	}
	return out
}

func TestHandlePing_RepliesPong(t *testing.T) {
	w, _, _, _, _ := newTestWorker()
	peer := newFakePeer("p1")
	w.handle(server.Inbound{From: peer, Msg: message.NewPing("abc")})

	select {
	case reply := <-peer.sent:
		if reply.Kind != message.Pong || reply.Text != "abc" {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatal("expected a pong reply")
	}
}

func TestHandleNewBlockHashes_RequestsMissing(t *testing.T) {
	w, c, _, _, _ := newTestWorker()
	peer := newFakePeer("p1")

	missing := types.Hash{0xaa}
	w.handle(server.Inbound{From: peer, Msg: message.NewNewBlockHashes([]types.Hash{c.Tip(), missing})})

	select {
	case reply := <-peer.sent:
		if reply.Kind != message.GetBlocks || len(reply.Hashes) != 1 || reply.Hashes[0] != missing {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatal("expected a GetBlocks request for the missing hash")
	}
}

func TestHandleGetBlocks_AllPresent(t *testing.T) {
	w, c, _, _, _ := newTestWorker()
	peer := newFakePeer("p1")

	w.handle(server.Inbound{From: peer, Msg: message.NewGetBlocks([]types.Hash{c.Tip()})})

	select {
	case reply := <-peer.sent:
		if reply.Kind != message.Blocks || len(reply.Blocks) != 1 {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatal("expected a Blocks reply")
	}
}

func TestHandleGetBlocks_PartialDropsSilently(t *testing.T) {
	w, c, _, _, _ := newTestWorker()
	peer := newFakePeer("p1")

	w.handle(server.Inbound{From: peer, Msg: message.NewGetBlocks([]types.Hash{c.Tip(), {0xaa}})})

	select {
	case reply := <-peer.sent:
		t.Fatalf("expected no reply for a partially-satisfiable request, got %+v", reply)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleBlocks_AcceptsValidChild(t *testing.T) {
	w, c, idx, _, bc := newTestWorker()
	child := mineChild(t, c.Tip(), nil)
	peer := newFakePeer("p1")

	w.handle(server.Inbound{From: peer, Msg: message.NewBlocksMsg([]*block.Block{child})})

	if !c.Has(child.Hash()) {
		t.Fatal("valid child block should be inserted")
	}
	if _, ok := idx.Get(child.Hash()); !ok {
		t.Error("state index should have an entry for the accepted block")
	}
	select {
	case msg := <-bc.sent:
		if msg.Kind != message.NewBlockHashes || len(msg.Hashes) != 1 || msg.Hashes[0] != child.Hash() {
			t.Fatalf("unexpected broadcast: %+v", msg)
		}
	default:
		t.Fatal("expected a NewBlockHashes broadcast")
	}
}

func TestHandleBlocks_OrphanBufferedAndRequested(t *testing.T) {
	w, c, _, _, _ := newTestWorker()
	orphanParent := types.Hash{0xbe, 0xef}
	orphan := mineChild(t, orphanParent, nil)
	peer := newFakePeer("p1")

	w.handle(server.Inbound{From: peer, Msg: message.NewBlocksMsg([]*block.Block{orphan})})

	if c.Has(orphan.Hash()) {
		t.Fatal("orphan block should not be inserted")
	}
	if len(w.orphans) != 1 {
		t.Fatalf("expected orphan buffered, got %d", len(w.orphans))
	}
	select {
	case reply := <-peer.sent:
		if reply.Kind != message.GetBlocks || len(reply.Hashes) != 1 || reply.Hashes[0] != orphanParent {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatal("expected a GetBlocks request for the orphan's parent")
	}
}

func TestHandleBlocks_CascadesOrphanOnParentArrival(t *testing.T) {
	w, c, idx, _, bc := newTestWorker()
	parent := mineChild(t, c.Tip(), nil)
	child := mineChild(t, parent.Hash(), nil)
	peer := newFakePeer("p1")

	// child arrives first: buffered as an orphan.
	w.handle(server.Inbound{From: peer, Msg: message.NewBlocksMsg([]*block.Block{child})})
	if len(w.orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(w.orphans))
	}
	<-peer.sent // drain the GetBlocks request

	// now its parent arrives: both should be accepted via the cascade.
	w.handle(server.Inbound{From: peer, Msg: message.NewBlocksMsg([]*block.Block{parent})})

	if !c.Has(parent.Hash()) || !c.Has(child.Hash()) {
		t.Fatal("both parent and cascaded child should be inserted")
	}
	if len(w.orphans) != 0 {
		t.Errorf("orphan buffer should be empty after cascade, got %d", len(w.orphans))
	}
	if _, ok := idx.Get(child.Hash()); !ok {
		t.Error("cascaded child should have a state index entry")
	}

	select {
	case msg := <-bc.sent:
		if msg.Kind != message.NewBlockHashes || len(msg.Hashes) != 2 {
			t.Fatalf("expected both blocks announced, got %+v", msg)
		}
	default:
		t.Fatal("expected a NewBlockHashes broadcast")
	}
}

func TestHandleBlocks_RejectsFailedPoW(t *testing.T) {
	w, c, _, _, _ := newTestWorker()
	header := &block.Header{
		Parent:     c.Tip(),
		Difficulty: types.Hash{}, // an all-zero target: virtually no hash will meet it
	}
	bad := block.NewBlock(header, nil)
	peer := newFakePeer("p1")

	w.handle(server.Inbound{From: peer, Msg: message.NewBlocksMsg([]*block.Block{bad})})

	if c.Has(bad.Hash()) {
		t.Fatal("block failing its PoW check must not be inserted")
	}
}

func TestHandleBlocks_RejectsDifficultyMismatch(t *testing.T) {
	w, c, _, _, _ := newTestWorker()
	peer := newFakePeer("p1")

	mismatched := types.MustHexToHash(
		"0007f93a75a75895a351786dd7a188515173f6928a8af8c9baa4dcff268a4f0f")
	header := &block.Header{Parent: c.Tip(), Difficulty: mismatched}
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		if header.Hash().Cmp(mismatched) <= 0 {
			break
		}
		if nonce > 2_000_000 {
			t.Fatal("failed to mine a test block within budget")
		}
	}
	child := block.NewBlock(header, nil)

	w.handle(server.Inbound{From: peer, Msg: message.NewBlocksMsg([]*block.Block{child})})

	if c.Has(child.Hash()) {
		t.Fatal("a block whose difficulty diverges from its parent's must not be inserted")
	}
}

func TestHandleNewTransactionHashes_RequestsUnknown(t *testing.T) {
	w, _, _, pool, _ := newTestWorker()
	peer := newFakePeer("p1")

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	known := tx.Sign(tx.Transaction{
		Inputs:  []tx.Input{{PrevTrans: types.Hash{}, Index: 0}},
		Outputs: []tx.Output{{Recipient: types.Address{0x01}, Value: 10}},
	}, key)
	pool.Insert(known)

	unknown := types.Hash{0xaa}
	w.handle(server.Inbound{From: peer, Msg: message.NewNewTransactionHashes([]types.Hash{known.Hash(), unknown})})

	select {
	case reply := <-peer.sent:
		if reply.Kind != message.GetTransactions || len(reply.Hashes) != 1 || reply.Hashes[0] != unknown {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatal("expected a GetTransactions request for the unknown hash")
	}
}

func TestHandleTransactions_InsertsAndReannounces(t *testing.T) {
	w, _, _, pool, bc := newTestWorker()
	key, _ := crypto.GenerateKey()
	txn := tx.Transaction{
		Inputs:  []tx.Input{{PrevTrans: types.Hash{}, Index: 0}},
		Outputs: []tx.Output{{Recipient: types.Address{0x01}, Value: 10}},
	}
	signed := tx.Sign(txn, key)

	w.handle(server.Inbound{Msg: message.NewTransactionsMsg([]*tx.SignedTransaction{signed})})

	if !pool.Has(signed.Hash()) {
		t.Fatal("valid transaction should be inserted into the mempool")
	}
	select {
	case msg := <-bc.sent:
		if msg.Kind != message.NewTransactionHashes || len(msg.Hashes) != 1 || msg.Hashes[0] != signed.Hash() {
			t.Fatalf("unexpected broadcast: %+v", msg)
		}
	default:
		t.Fatal("expected a re-announce broadcast")
	}
}

func TestHandleGetTransactions_RoundTrip(t *testing.T) {
	w, _, _, pool, _ := newTestWorker()
	key, _ := crypto.GenerateKey()
	txn := tx.Transaction{
		Inputs:  []tx.Input{{PrevTrans: types.Hash{}, Index: 0}},
		Outputs: []tx.Output{{Recipient: types.Address{0x01}, Value: 10}},
	}
	signed := tx.Sign(txn, key)
	pool.Insert(signed)
	peer := newFakePeer("p1")

	w.handle(server.Inbound{From: peer, Msg: message.NewGetTransactions([]types.Hash{signed.Hash()})})

	select {
	case reply := <-peer.sent:
		if reply.Kind != message.Transactions || len(reply.Transactions) != 1 {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatal("expected a Transactions reply")
	}
}
