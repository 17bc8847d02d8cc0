package vote

import (
	"strings"
	"time"

	"votechain/internal/biometric"
	"votechain/internal/identity"
	dErrors "votechain/pkg/domain-errors"
)

// CastRequest carries everything a voter presents at the booth.
type CastRequest struct {
	VoterID        identity.VoterID
	DistrictID     string
	CandidateID    string
	Face           biometric.Sample
	Fingerprint    biometric.Sample
	ChallengeProof []byte
}

// Validate checks the request shape before any lookups run.
func (r CastRequest) Validate() error {
	if r.VoterID == "" {
		return dErrors.New(dErrors.CodeValidation, "voter_id is required")
	}
	if strings.TrimSpace(r.DistrictID) == "" {
		return dErrors.New(dErrors.CodeValidation, "district_id is required")
	}
	if strings.TrimSpace(r.CandidateID) == "" {
		return dErrors.New(dErrors.CodeValidation, "candidate_id is required")
	}
	return nil
}

// Receipt is returned to the voter once the ballot is on the chain.
type Receipt struct {
	BlockHash string    `json:"block_hash"`
	Timestamp time.Time `json:"timestamp"`
}

// Stage names the furthest step a CastVote reached.
type Stage string

const (
	StageStart              Stage = "start"
	StageEligibilityChecked Stage = "eligibility_checked"
	StageBiometricVerified  Stage = "biometric_verified"
	StageChallengeRedeemed  Stage = "challenge_redeemed"
	StageCommitted          Stage = "committed"
)
