package block

import (
	"encoding/binary"
	"fmt"

	"github.com/triadledger/node/pkg/crypto"
	"github.com/triadledger/node/pkg/types"
)

// headerWireSize is the fixed byte length of an encoded Header:
// parent(32) + nonce(4) + difficulty(32) + timestamp(16) + merkle_root(32).
const headerWireSize = 32 + 4 + 32 + 16 + 32

// Header contains block metadata: parent, nonce, difficulty, timestamp,
// merkle_root, in wire order.
type Header struct {
	Parent     types.Hash `json:"parent"`
	Nonce      uint32     `json:"nonce"`
	Difficulty types.Hash `json:"difficulty"`
	Timestamp  uint64     `json:"timestamp"` // milliseconds since Unix epoch
	MerkleRoot types.Hash `json:"merkle_root"`
}

// CanonicalBytes returns the deterministic byte encoding that both the
// block hash and PoW target check are computed over.
// Format: parent(32) | nonce(4) | difficulty(32) | timestamp(16, u128 LE) | merkle_root(32)
func (h *Header) CanonicalBytes() []byte {
	buf := make([]byte, 0, 32+4+32+16+32)
	buf = append(buf, h.Parent[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Nonce)
	buf = append(buf, h.Difficulty[:]...)
	buf = appendUint128LE(buf, h.Timestamp)
	buf = append(buf, h.MerkleRoot[:]...)
	return buf
}

// appendUint128LE appends v as a 16-byte little-endian u128. The high
// 8 bytes are always zero: a millisecond epoch timestamp never
// approaches 64 bits, but the wire format reserves the full width the
// spec specifies.
func appendUint128LE(buf []byte, v uint64) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, v)
	buf = binary.LittleEndian.AppendUint64(buf, 0)
	return buf
}

// Hash computes the block header hash: SHA-256 over its canonical bytes.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.CanonicalBytes())
}

// MeetsDifficulty reports whether the header's hash does not exceed
// its stated difficulty target.
func (h *Header) MeetsDifficulty() bool {
	return h.Hash().Cmp(h.Difficulty) <= 0
}

// DecodeHeader parses a Header from its canonical wire encoding,
// returning the header and the number of bytes consumed.
func DecodeHeader(data []byte) (*Header, int, error) {
	if len(data) < headerWireSize {
		return nil, 0, fmt.Errorf("header: need %d bytes, got %d", headerWireSize, len(data))
	}

	h := &Header{}
	off := 0
	copy(h.Parent[:], data[off:off+32])
	off += 32
	h.Nonce = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	copy(h.Difficulty[:], data[off:off+32])
	off += 32
	h.Timestamp = binary.LittleEndian.Uint64(data[off : off+8])
	off += 16 // skip the zeroed high 8 bytes of the u128 field
	copy(h.MerkleRoot[:], data[off:off+32])
	off += 32

	return h, off, nil
}
