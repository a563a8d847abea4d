// Package consensus holds the network's proof-of-work rules: a single
// fixed difficulty target shared by every peer, and the check a
// candidate header must pass to be accepted into the chain.
package consensus

import (
	"errors"
	"fmt"

	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/types"
)

// Target is the network-wide difficulty ceiling every block header hash
// must not exceed. It never adjusts: dynamic retargeting is out of
// scope for this cohort-sized network.
var Target = types.MustHexToHash("000ff93a75a75895a351786dd7a188515173f6928a8af8c9baa4dcff268a4f0f")

// Consensus errors.
var (
	ErrWrongDifficulty  = errors.New("header difficulty does not match the network target")
	ErrInsufficientWork = errors.New("header hash does not meet its difficulty target")
)

// PoW is a stateless proof-of-work validator: it holds no chain state
// of its own, only the fixed target every header is checked against.
type PoW struct{}

// New returns a PoW validator bound to the fixed network Target.
func New() *PoW {
	return &PoW{}
}

// Prepare stamps header with the network's fixed difficulty target, in
// preparation for mining.
func (PoW) Prepare(header *block.Header) {
	header.Difficulty = Target
}

// VerifyHeader checks that header states the network's fixed
// difficulty and that its hash actually meets that difficulty.
func (PoW) VerifyHeader(header *block.Header) error {
	if header.Difficulty != Target {
		return fmt.Errorf("%w: got %s", ErrWrongDifficulty, header.Difficulty)
	}
	if !header.MeetsDifficulty() {
		return ErrInsufficientWork
	}
	return nil
}
