// Package identity holds the node cohort's hard-wired keypairs. Key
// management beyond this fixed table is out of scope: there is no
// wallet UX, no mnemonic derivation, no at-rest encryption.
package identity

import (
	"fmt"
	"strconv"

	"github.com/triadledger/node/pkg/crypto"
	"github.com/triadledger/node/pkg/types"
)

// CohortSize is the number of fixed peer identities in the network.
const CohortSize = 3

// seeds are fixed 32-byte Ed25519 seeds, one per cohort member. They
// are constants, not secrets drawn from any external source: the
// cohort is closed and known in advance.
var seeds = [CohortSize][32]byte{
	{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
		0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20},
	{0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f, 0x30,
		0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e, 0x3f, 0x40},
	{0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f, 0x50,
		0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59, 0x5a, 0x5b, 0x5c, 0x5d, 0x5e, 0x5f, 0x60},
}

// Identity is one cohort member's keypair and derived address.
type Identity struct {
	Index   int
	Key     *crypto.PrivateKey
	Address types.Address
}

// Keys returns the cohort's keypairs in index order (0, 1, 2).
func Keys() ([CohortSize]Identity, error) {
	var out [CohortSize]Identity
	for i, seed := range seeds {
		key, err := crypto.PrivateKeyFromSeed(seed[:])
		if err != nil {
			return out, fmt.Errorf("cohort seed %d: %w", i, err)
		}
		out[i] = Identity{
			Index:   i,
			Key:     key,
			Address: crypto.AddressFromPubKey(key.PublicKey()),
		}
	}
	return out, nil
}

// SelectFromPort picks the cohort index from the last digit of a P2P
// listen port string, per the fixed identity table.
func SelectFromPort(port string) (int, error) {
	if port == "" {
		return 0, fmt.Errorf("empty port")
	}
	last := port[len(port)-1]
	digit, err := strconv.Atoi(string(last))
	if err != nil {
		return 0, fmt.Errorf("port %q does not end in a digit: %w", port, err)
	}
	return digit % CohortSize, nil
}
