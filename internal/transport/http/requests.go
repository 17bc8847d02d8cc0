package httptransport

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"votechain/internal/biometric"
	"votechain/internal/challenge"
	"votechain/internal/election"
	"votechain/internal/identity"
	"votechain/internal/vote"
	dErrors "votechain/pkg/domain-errors"
)

// FaceInput is a presented face: an embedding, a raw capture (base64 in
// JSON), or at enrolment a precomputed digest.
type FaceInput struct {
	Vector []float64 `json:"vector,omitempty"`
	Sample []byte    `json:"sample,omitempty"`
	Hash   string    `json:"hash,omitempty"`
}

func (f FaceInput) sample() biometric.Sample {
	return biometric.Sample{Raw: f.Sample, Vector: f.Vector}
}

// RegisterRequest is the body of POST /registrations.
type RegisterRequest struct {
	VoterID         string    `json:"voter_id"`
	Face            FaceInput `json:"face"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
	FingerprintHash string    `json:"fingerprint_hash,omitempty"`

	voterID identity.VoterID
}

func (r *RegisterRequest) Validate() error {
	id, err := identity.ParseVoterID(r.VoterID)
	if err != nil {
		return err
	}
	r.voterID = id
	if len(r.Face.Vector) == 0 && len(r.Face.Sample) == 0 && r.Face.Hash == "" {
		return dErrors.New(dErrors.CodeValidation, "face vector, sample or hash is required")
	}
	if r.Fingerprint == "" && r.FingerprintHash == "" {
		return dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}
	return nil
}

func (r *RegisterRequest) toDomain() identity.RegisterRequest {
	req := identity.RegisterRequest{
		VoterID:         r.voterID,
		Face:            r.Face.sample(),
		FaceHash:        strings.ToLower(r.Face.Hash),
		FingerprintHash: strings.ToLower(r.FingerprintHash),
	}
	if r.Fingerprint != "" {
		req.Fingerprint = []byte(r.Fingerprint)
	}
	return req
}

// CastVoteRequest is the body of POST /votes. ChallengeProof is either a
// base64 signature string or the WebAuthn assertion object.
type CastVoteRequest struct {
	VoterID        string          `json:"voter_id"`
	DistrictID     string          `json:"district_id"`
	CandidateID    string          `json:"candidate_id"`
	Face           FaceInput       `json:"face"`
	Fingerprint    string          `json:"fingerprint"`
	ChallengeProof json.RawMessage `json:"challenge_proof"`

	voterID identity.VoterID
	proof   []byte
}

func (r *CastVoteRequest) Validate() error {
	id, err := identity.ParseVoterID(r.VoterID)
	if err != nil {
		return err
	}
	r.voterID = id
	r.DistrictID = strings.TrimSpace(r.DistrictID)
	r.CandidateID = strings.TrimSpace(r.CandidateID)
	if r.DistrictID == "" || r.CandidateID == "" {
		return dErrors.New(dErrors.CodeValidation, "district_id and candidate_id are required")
	}
	proof, err := decodeProof(r.ChallengeProof)
	if err != nil {
		return err
	}
	r.proof = proof
	return nil
}

func (r *CastVoteRequest) toDomain() vote.CastRequest {
	req := vote.CastRequest{
		VoterID:        r.voterID,
		DistrictID:     r.DistrictID,
		CandidateID:    r.CandidateID,
		Face:           r.Face.sample(),
		ChallengeProof: r.proof,
	}
	if r.Fingerprint != "" {
		req.Fingerprint = biometric.Sample{Raw: []byte(r.Fingerprint)}
	}
	return req
}

// decodeProof accepts a JSON string holding base64 (standard or URL
// alphabet) or a JSON object passed through verbatim.
func decodeProof(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil, dErrors.New(dErrors.CodeValidation, "challenge_proof is required")
	case strings.HasPrefix(trimmed, "{"):
		return []byte(trimmed), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "challenge_proof must be a base64 string or an assertion object")
	}
	s = strings.TrimRight(s, "=")
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, "challenge_proof is not valid base64")
}

// IssueChallengeRequest is the body of POST /challenges.
type IssueChallengeRequest struct {
	VoterID string `json:"voter_id"`

	voterID identity.VoterID
}

func (r *IssueChallengeRequest) Validate() error {
	id, err := identity.ParseVoterID(r.VoterID)
	if err != nil {
		return err
	}
	r.voterID = id
	return nil
}

// ProvisionCredentialRequest is the body of PUT /voters/{voterID}/credentials.
// Data is base64 in JSON.
type ProvisionCredentialRequest struct {
	ID   string                   `json:"id"`
	Kind challenge.CredentialKind `json:"kind"`
	Data []byte                   `json:"data"`
}

func (r *ProvisionCredentialRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if len(r.Data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "data is required")
	}
	return nil
}

// AddCandidateRequest is the body of POST /candidates.
type AddCandidateRequest struct {
	ID         string `json:"candidate_id"`
	Name       string `json:"name"`
	Party      string `json:"party"`
	DistrictID string `json:"district_id"`
}

func (r *AddCandidateRequest) Validate() error {
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "candidate_id is required")
	}
	return nil
}

func (r *AddCandidateRequest) toDomain() election.Candidate {
	return election.Candidate{ID: r.ID, Name: r.Name, Party: r.Party, DistrictID: strings.TrimSpace(r.DistrictID)}
}

// OperatorTokenRequest is the body of POST /admin/tokens.
type OperatorTokenRequest struct {
	OperatorID string `json:"operator_id"`

	operatorID identity.VoterID
}

func (r *OperatorTokenRequest) Validate() error {
	id, err := identity.ParseVoterID(r.OperatorID)
	if err != nil {
		return err
	}
	r.operatorID = id
	return nil
}
