// Package crypto provides the cryptographic primitives shared by the
// node: content hashing, address derivation, and Ed25519 signing.
package crypto

import (
	"crypto/sha256"

	"github.com/triadledger/node/pkg/types"
)

// Hash computes the SHA-256 hash of data.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// AddressFromPubKey derives an address as the trailing AddressSize
// bytes of SHA-256(pubKey).
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[types.HashSize-types.AddressSize:])
	return addr
}

// HashConcat hashes the concatenation of two hashes. Used by the
// Merkle tree to combine sibling nodes.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [2 * types.HashSize]byte
	copy(buf[:types.HashSize], a[:])
	copy(buf[types.HashSize:], b[:])
	return Hash(buf[:])
}
