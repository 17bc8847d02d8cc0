package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC)

func TestNewBlock_Genesis(t *testing.T) {
	b, err := newBlock(nil, genesisMarker, genesisMarker, "", fixedTime)
	require.NoError(t, err)

	assert.Equal(t, int64(0), b.Index)
	assert.Equal(t, GenesisPreviousHash, b.PreviousHash)
	assert.True(t, b.BiometricVerified)
	assert.Len(t, b.Hash, 64)
	assert.Equal(t, fixedTime.Truncate(time.Microsecond), b.Timestamp)
	require.NoError(t, b.CheckIntegrity())
}

func TestNewBlock_LinksToPredecessor(t *testing.T) {
	genesis, err := newBlock(nil, genesisMarker, genesisMarker, "", fixedTime)
	require.NoError(t, err)
	vote, err := newBlock(genesis, "234", "P1", "ref", fixedTime.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, int64(1), vote.Index)
	assert.Equal(t, genesis.Hash, vote.PreviousHash)
}

func TestCanonical_IsDeterministicAndExcludesVoterReference(t *testing.T) {
	a := &Block{Index: 3, DistrictID: "234", CandidateID: "P1", Timestamp: fixedTime, PreviousHash: "abc", BiometricVerified: true, VoterReference: "one"}
	b := &Block{Index: 3, DistrictID: "234", CandidateID: "P1", Timestamp: fixedTime, PreviousHash: "abc", BiometricVerified: true, VoterReference: "two"}

	ca, err := a.Canonical()
	require.NoError(t, err)
	cb, err := b.Canonical()
	require.NoError(t, err)
	assert.Equal(t, ca, cb)

	// Map header for six entries followed by key 1.
	assert.Equal(t, byte(0xa6), ca[0])
	assert.Equal(t, byte(0x01), ca[1])
}

func TestCheckIntegrity_DetectsFieldChanges(t *testing.T) {
	mutations := map[string]func(b *Block){
		"district":  func(b *Block) { b.DistrictID = "235" },
		"candidate": func(b *Block) { b.CandidateID = "P2" },
		"timestamp": func(b *Block) { b.Timestamp = b.Timestamp.Add(time.Microsecond) },
		"previous":  func(b *Block) { b.PreviousHash = "1" + b.PreviousHash[1:] },
		"index":     func(b *Block) { b.Index++ },
		"biometric": func(b *Block) { b.BiometricVerified = false },
		"hash":      func(b *Block) { b.Hash = "f" + b.Hash[1:] },
		"data":      func(b *Block) { b.Data[len(b.Data)-1] ^= 0xff },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			b, err := newBlock(nil, "234", "P1", "", fixedTime)
			require.NoError(t, err)
			b.PreviousHash = "0abc"
			require.NoError(t, b.seal())

			mutate(b)
			assert.Error(t, b.CheckIntegrity())
		})
	}
}

func TestTally(t *testing.T) {
	blocks := []Block{
		{Index: 0, DistrictID: "0", CandidateID: "0"},
		{Index: 1, DistrictID: "234", CandidateID: "P1"},
		{Index: 2, DistrictID: "234", CandidateID: "P2"},
		{Index: 3, DistrictID: "235", CandidateID: "P1"},
		{Index: 4, DistrictID: "235", CandidateID: "P2"},
		{Index: 5, DistrictID: "235", CandidateID: "P3"},
	}
	res := tally(blocks)

	assert.Equal(t, 5, res.TotalVotes)
	assert.Equal(t, []CandidateTally{{"P1", 2}, {"P2", 2}, {"P3", 1}}, res.ByCandidate)
	assert.Equal(t, []string{"P1", "P2"}, res.Winners)
	assert.Len(t, res.ByDistrict["235"], 3)
}

func TestVoterReference(t *testing.T) {
	plain, err := New(nil)
	require.NoError(t, err)
	keyed, err := New(nil, WithVoterReferenceKey([]byte("election-2026")))
	require.NoError(t, err)

	assert.Len(t, plain.VoterReference("ABC123456"), 64)
	assert.NotEqual(t, plain.VoterReference("ABC123456"), keyed.VoterReference("ABC123456"))
	assert.Equal(t, keyed.VoterReference("ABC123456"), keyed.VoterReference("ABC123456"))
	assert.Empty(t, keyed.VoterReference(""))

	_, err = New(nil, WithVoterReferenceKey(make([]byte, 65)))
	assert.Error(t, err)
}
