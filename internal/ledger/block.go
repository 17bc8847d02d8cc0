// Package ledger is the append-only, hash-chained record of accepted votes.
//
// Each block's hash covers a Core Deterministic CBOR encoding of its logical
// fields and the previous block's hash. The voter reference is stored next
// to the block for receipt lookup and is never part of the digest.
package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// GenesisPreviousHash is the predecessor reference of block 0.
const GenesisPreviousHash = "0"

// genesisMarker fills the district and candidate of the genesis block.
const genesisMarker = "0"

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ledger: CBOR encoder initialization failed: " + err.Error())
	}
}

// Block is one link of the chain.
type Block struct {
	Index             int64     `json:"index"`
	DistrictID        string    `json:"district_id"`
	CandidateID       string    `json:"candidate_id"`
	Timestamp         time.Time `json:"timestamp"`
	PreviousHash      string    `json:"previous_hash"`
	Hash              string    `json:"current_hash"`
	BiometricVerified bool      `json:"biometric_verified"`

	// Data is the canonical encoding the hash was computed over, as stored.
	Data []byte `json:"-"`
	// VoterReference is a keyed digest of the voter id. Empty for genesis.
	VoterReference string `json:"-"`
}

// payload is the canonical, integer-keyed view of a block.
type payload struct {
	Index             int64  `cbor:"1,keyasint"`
	DistrictID        string `cbor:"2,keyasint"`
	CandidateID       string `cbor:"3,keyasint"`
	Timestamp         int64  `cbor:"4,keyasint"`
	PreviousHash      string `cbor:"5,keyasint"`
	BiometricVerified bool   `cbor:"6,keyasint"`
}

// Canonical returns the deterministic byte encoding hashed into the block.
// Timestamps are encoded as Unix microseconds.
func (b *Block) Canonical() ([]byte, error) {
	data, err := encMode.Marshal(payload{
		Index:             b.Index,
		DistrictID:        b.DistrictID,
		CandidateID:       b.CandidateID,
		Timestamp:         b.Timestamp.UnixMicro(),
		PreviousHash:      b.PreviousHash,
		BiometricVerified: b.BiometricVerified,
	})
	if err != nil {
		return nil, fmt.Errorf("encode block %d: %w", b.Index, err)
	}
	return data, nil
}

// Digest is the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// seal fills Data and Hash from the logical fields.
func (b *Block) seal() error {
	data, err := b.Canonical()
	if err != nil {
		return err
	}
	b.Data = data
	b.Hash = Digest(data)
	return nil
}

// CheckIntegrity recomputes the hash from the logical fields and compares it
// to the stored hash and stored canonical bytes.
func (b *Block) CheckIntegrity() error {
	data, err := b.Canonical()
	if err != nil {
		return err
	}
	if len(b.Data) > 0 && !bytes.Equal(data, b.Data) {
		return fmt.Errorf("block %d: stored canonical data does not match its fields", b.Index)
	}
	if Digest(data) != b.Hash {
		return fmt.Errorf("block %d: hash mismatch", b.Index)
	}
	return nil
}

// newBlock builds and seals the successor of prev. prev is nil for an empty chain.
func newBlock(prev *Block, districtID, candidateID, voterRef string, at time.Time) (*Block, error) {
	b := &Block{
		DistrictID:        districtID,
		CandidateID:       candidateID,
		Timestamp:         at.UTC().Truncate(time.Microsecond),
		PreviousHash:      GenesisPreviousHash,
		BiometricVerified: true,
		VoterReference:    voterRef,
	}
	if prev != nil {
		b.Index = prev.Index + 1
		b.PreviousHash = prev.Hash
	}
	if err := b.seal(); err != nil {
		return nil, err
	}
	return b, nil
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	out := *b
	out.Data = bytes.Clone(b.Data)
	return &out
}
