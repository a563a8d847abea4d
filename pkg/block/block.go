// Package block defines block types, the Merkle tree, and the header's
// proof-of-work target check.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/triadledger/node/pkg/tx"
	"github.com/triadledger/node/pkg/types"
)

// Block is a header plus the ordered signed transactions it carries.
type Block struct {
	Header  *Header                `json:"header"`
	Content []*tx.SignedTransaction `json:"content"`
}

// NewBlock creates a new block with the given header and content.
func NewBlock(header *Header, content []*tx.SignedTransaction) *Block {
	return &Block{
		Header:  header,
		Content: content,
	}
}

// hashables adapts b's signed transactions to the Hashable interface the
// Merkle tree functions operate over.
func (b *Block) hashables() []Hashable {
	items := make([]Hashable, len(b.Content))
	for i, st := range b.Content {
		items[i] = st
	}
	return items
}

// MerkleRoot computes the Merkle root over b's content. A caller builds
// a header with this before sealing it with proof of work.
func (b *Block) MerkleRoot() types.Hash {
	return RootOf(b.hashables())
}

// Hash returns the block's identity: its header hash.
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}

// Encode serializes b as header bytes followed by a length-prefixed
// sequence of signed transactions, for wire transport.
func (b *Block) Encode() []byte {
	buf := b.Header.CanonicalBytes()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Content)))
	for _, st := range b.Content {
		buf = append(buf, st.CanonicalBytes()...)
	}
	return buf
}

// DecodeBlock parses a Block from its wire encoding, returning it and
// the number of bytes consumed.
func DecodeBlock(data []byte) (*Block, int, error) {
	header, off, err := DecodeHeader(data)
	if err != nil {
		return nil, 0, fmt.Errorf("block: %w", err)
	}

	if len(data) < off+4 {
		return nil, 0, fmt.Errorf("block: truncated content count")
	}
	count := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	content := make([]*tx.SignedTransaction, count)
	for i := range content {
		st, n, err := tx.DecodeSignedTransaction(data[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("block: content %d: %w", i, err)
		}
		content[i] = st
		off += n
	}

	return &Block{Header: header, Content: content}, off, nil
}
