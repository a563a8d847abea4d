// Package tx defines the transaction model: inputs, outputs, the
// unsigned Transaction, and the SignedTransaction wrapper carrying its
// signature and signer public key.
package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/triadledger/node/pkg/crypto"
	"github.com/triadledger/node/pkg/types"
)

// Input references a prior output by transaction hash and output index.
type Input struct {
	PrevTrans types.Hash `json:"prev_trans"`
	Index     uint8      `json:"index"`
}

// Output pays a value to a recipient address.
type Output struct {
	Recipient types.Address `json:"recipient"`
	Value     uint32        `json:"value"`
}

// Transaction is the unsigned body: an ordered list of inputs spent and
// outputs created.
type Transaction struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// NewTransaction builds a Transaction from inputs and outputs.
func NewTransaction(inputs []Input, outputs []Output) *Transaction {
	return &Transaction{Inputs: inputs, Outputs: outputs}
}

// CanonicalBytes returns the deterministic byte encoding hashed and
// signed over: inputs and outputs in declaration order, little-endian
// fixed-width integers, length-prefixed sequences.
func (t *Transaction) CanonicalBytes() []byte {
	buf := make([]byte, 0, 4+len(t.Inputs)*33+4+len(t.Outputs)*24)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevTrans[:]...)
		buf = append(buf, in.Index)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = append(buf, out.Recipient[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, out.Value)
	}

	return buf
}

// DecodeTransaction parses a Transaction from its canonical wire
// encoding, returning the transaction and the number of bytes consumed.
func DecodeTransaction(data []byte) (*Transaction, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("transaction: truncated input count")
	}
	off := 0
	inputCount := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	inputs := make([]Input, inputCount)
	for i := range inputs {
		if len(data) < off+33 {
			return nil, 0, fmt.Errorf("transaction: truncated input %d", i)
		}
		copy(inputs[i].PrevTrans[:], data[off:off+32])
		inputs[i].Index = data[off+32]
		off += 33
	}

	if len(data) < off+4 {
		return nil, 0, fmt.Errorf("transaction: truncated output count")
	}
	outputCount := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	outputs := make([]Output, outputCount)
	for i := range outputs {
		if len(data) < off+24 {
			return nil, 0, fmt.Errorf("transaction: truncated output %d", i)
		}
		copy(outputs[i].Recipient[:], data[off:off+20])
		outputs[i].Value = binary.LittleEndian.Uint32(data[off+20 : off+24])
		off += 24
	}

	return &Transaction{Inputs: inputs, Outputs: outputs}, off, nil
}

// DecodeSignedTransaction parses a SignedTransaction from its
// canonical wire encoding, returning it and the number of bytes consumed.
func DecodeSignedTransaction(data []byte) (*SignedTransaction, int, error) {
	inner, off, err := DecodeTransaction(data)
	if err != nil {
		return nil, 0, err
	}

	if len(data) < off+4 {
		return nil, 0, fmt.Errorf("signed transaction: truncated signature length")
	}
	sigLen := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	if len(data) < off+int(sigLen) {
		return nil, 0, fmt.Errorf("signed transaction: truncated signature")
	}
	sig := append([]byte(nil), data[off:off+int(sigLen)]...)
	off += int(sigLen)

	if len(data) < off+4 {
		return nil, 0, fmt.Errorf("signed transaction: truncated public key length")
	}
	pkLen := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	if len(data) < off+int(pkLen) {
		return nil, 0, fmt.Errorf("signed transaction: truncated public key")
	}
	pk := append([]byte(nil), data[off:off+int(pkLen)]...)
	off += int(pkLen)

	return &SignedTransaction{
		Transaction: *inner,
		Signature:   sig,
		PublicKey:   pk,
	}, off, nil
}

// OutputSum returns the sum of all output values.
func (t *Transaction) OutputSum() uint64 {
	var sum uint64
	for _, out := range t.Outputs {
		sum += uint64(out.Value)
	}
	return sum
}

// SignedTransaction wraps a Transaction with the signer's signature and
// public key.
type SignedTransaction struct {
	Transaction Transaction `json:"transaction"`
	Signature   []byte      `json:"signature"`
	PublicKey   []byte      `json:"public_key"`
}

// Sign builds a SignedTransaction by signing t's canonical bytes with signer.
func Sign(t Transaction, signer crypto.Signer) *SignedTransaction {
	return &SignedTransaction{
		Transaction: t,
		Signature:   signer.Sign(t.CanonicalBytes()),
		PublicKey:   append([]byte(nil), signer.PublicKey()...),
	}
}

// Verify checks st's signature against its embedded transaction and
// public key.
func (st *SignedTransaction) Verify() bool {
	return crypto.VerifySignature(st.Transaction.CanonicalBytes(), st.Signature, st.PublicKey)
}

// CanonicalBytes returns the deterministic byte encoding of the signed
// wrapper, used to compute its hash.
func (st *SignedTransaction) CanonicalBytes() []byte {
	inner := st.Transaction.CanonicalBytes()
	buf := make([]byte, 0, len(inner)+4+len(st.Signature)+4+len(st.PublicKey))
	buf = append(buf, inner...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(st.Signature)))
	buf = append(buf, st.Signature...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(st.PublicKey)))
	buf = append(buf, st.PublicKey...)
	return buf
}

// Hash returns SHA-256 over st's canonical byte encoding.
func (st *SignedTransaction) Hash() types.Hash {
	return crypto.Hash(st.CanonicalBytes())
}

// SenderAddress derives the address of the signer from the embedded
// public key.
func (st *SignedTransaction) SenderAddress() types.Address {
	return crypto.AddressFromPubKey(st.PublicKey)
}
