// Package message defines the gossip wire schema: eight message kinds
// with a canonical, length-prefixed binary encoding delivered as
// opaque bytes to the gossip worker.
package message

import (
	"encoding/binary"
	"fmt"

	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// Kind tags a Message's payload variant.
type Kind uint8

const (
	Ping Kind = iota
	Pong
	NewBlockHashes
	GetBlocks
	Blocks
	NewTransactionHashes
	GetTransactions
	Transactions
)

func (k Kind) String() string {
	switch k {
	case Ping:
		return "Ping"
	case Pong:
		return "Pong"
	case NewBlockHashes:
		return "NewBlockHashes"
	case GetBlocks:
		return "GetBlocks"
	case Blocks:
		return "Blocks"
	case NewTransactionHashes:
		return "NewTransactionHashes"
	case GetTransactions:
		return "GetTransactions"
	case Transactions:
		return "Transactions"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Message is one gossip protocol message. Only the field(s) relevant
// to Kind are populated; the rest are left zero.
type Message struct {
	Kind         Kind
	Text         string                  // Ping, Pong
	Hashes       []types.Hash            // NewBlockHashes, GetBlocks, NewTransactionHashes, GetTransactions
	Blocks       []*block.Block          // Blocks
	Transactions []*tx.SignedTransaction // Transactions
}

func NewPing(nonce string) Message  { return Message{Kind: Ping, Text: nonce} }
func NewPong(nonce string) Message  { return Message{Kind: Pong, Text: nonce} }
func NewNewBlockHashes(hashes []types.Hash) Message {
	return Message{Kind: NewBlockHashes, Hashes: hashes}
}
func NewGetBlocks(hashes []types.Hash) Message { return Message{Kind: GetBlocks, Hashes: hashes} }
func NewBlocksMsg(blocks []*block.Block) Message { return Message{Kind: Blocks, Blocks: blocks} }
func NewNewTransactionHashes(hashes []types.Hash) Message {
	return Message{Kind: NewTransactionHashes, Hashes: hashes}
}
func NewGetTransactions(hashes []types.Hash) Message {
	return Message{Kind: GetTransactions, Hashes: hashes}
}
func NewTransactionsMsg(txs []*tx.SignedTransaction) Message {
	return Message{Kind: Transactions, Transactions: txs}
}

// Encode serializes m to its canonical wire form: a one-byte kind tag
// followed by the payload appropriate to that kind.
func (m Message) Encode() []byte {
	buf := []byte{byte(m.Kind)}

	switch m.Kind {
	case Ping, Pong:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Text)))
		buf = append(buf, m.Text...)
	case NewBlockHashes, GetBlocks, NewTransactionHashes, GetTransactions:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Hashes)))
		for _, h := range m.Hashes {
			buf = append(buf, h[:]...)
		}
	case Blocks:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Blocks)))
		for _, b := range m.Blocks {
			encoded := b.Encode()
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(encoded)))
			buf = append(buf, encoded...)
		}
	case Transactions:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Transactions)))
		for _, st := range m.Transactions {
			encoded := st.CanonicalBytes()
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(encoded)))
			buf = append(buf, encoded...)
		}
	}

	return buf
}

// Decode parses a Message from its canonical wire form.
func Decode(data []byte) (Message, error) {
	if len(data) < 1 {
		return Message{}, fmt.Errorf("message: empty input")
	}
	kind := Kind(data[0])
	off := 1

	switch kind {
	case Ping, Pong:
		s, n, err := decodeString(data[off:])
		if err != nil {
			return Message{}, fmt.Errorf("message %s: %w", kind, err)
		}
		off += n
		return Message{Kind: kind, Text: s}, checkConsumed(data, off)

	case NewBlockHashes, GetBlocks, NewTransactionHashes, GetTransactions:
		hashes, n, err := decodeHashes(data[off:])
		if err != nil {
			return Message{}, fmt.Errorf("message %s: %w", kind, err)
		}
		off += n
		return Message{Kind: kind, Hashes: hashes}, checkConsumed(data, off)

	case Blocks:
		if len(data) < off+4 {
			return Message{}, fmt.Errorf("message Blocks: truncated count")
		}
		count := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		blocks := make([]*block.Block, count)
		for i := range blocks {
			if len(data) < off+4 {
				return Message{}, fmt.Errorf("message Blocks: truncated entry length")
			}
			entryLen := binary.LittleEndian.Uint32(data[off : off+4])
			off += 4
			if len(data) < off+int(entryLen) {
				return Message{}, fmt.Errorf("message Blocks: truncated entry %d", i)
			}
			b, _, err := block.DecodeBlock(data[off : off+int(entryLen)])
			if err != nil {
				return Message{}, fmt.Errorf("message Blocks: entry %d: %w", i, err)
			}
			blocks[i] = b
			off += int(entryLen)
		}
		return Message{Kind: kind, Blocks: blocks}, checkConsumed(data, off)

	case Transactions:
		if len(data) < off+4 {
			return Message{}, fmt.Errorf("message Transactions: truncated count")
		}
		count := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		txs := make([]*tx.SignedTransaction, count)
		for i := range txs {
			if len(data) < off+4 {
				return Message{}, fmt.Errorf("message Transactions: truncated entry length")
			}
			entryLen := binary.LittleEndian.Uint32(data[off : off+4])
			off += 4
			if len(data) < off+int(entryLen) {
				return Message{}, fmt.Errorf("message Transactions: truncated entry %d", i)
			}
			st, _, err := tx.DecodeSignedTransaction(data[off : off+int(entryLen)])
			if err != nil {
				return Message{}, fmt.Errorf("message Transactions: entry %d: %w", i, err)
			}
			txs[i] = st
			off += int(entryLen)
		}
		return Message{Kind: kind, Transactions: txs}, checkConsumed(data, off)

	default:
		return Message{}, fmt.Errorf("message: unknown kind %d", kind)
	}
}

func decodeString(data []byte) (string, int, error) {
	if len(data) < 4 {
		return "", 0, fmt.Errorf("truncated string length")
	}
	n := binary.LittleEndian.Uint32(data[:4])
	if len(data) < 4+int(n) {
		return "", 0, fmt.Errorf("truncated string body")
	}
	return string(data[4 : 4+n]), 4 + int(n), nil
}

func decodeHashes(data []byte) ([]types.Hash, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("truncated hash count")
	}
	count := binary.LittleEndian.Uint32(data[:4])
	off := 4
	hashes := make([]types.Hash, count)
	for i := range hashes {
		if len(data) < off+types.HashSize {
			return nil, 0, fmt.Errorf("truncated hash %d", i)
		}
		copy(hashes[i][:], data[off:off+types.HashSize])
		off += types.HashSize
	}
	return hashes, off, nil
}

func checkConsumed(data []byte, off int) error {
	if off != len(data) {
		return fmt.Errorf("message: %d trailing bytes after decode", len(data)-off)
	}
	return nil
}
