// Package identity binds voters to biometric descriptors and enforces that
// each person enrols once and votes once.
package identity

import (
	"regexp"
	"strings"
	"time"

	"votechain/internal/biometric"
	dErrors "votechain/pkg/domain-errors"
)

var voterIDPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{6}$`)

// VoterID is a national voter identifier: three letters then six digits.
type VoterID string

// ParseVoterID upper-cases and validates s.
func ParseVoterID(s string) (VoterID, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if !voterIDPattern.MatchString(v) {
		return "", dErrors.New(dErrors.CodeValidation, "voter_id must be 3 letters followed by 6 digits")
	}
	return VoterID(v), nil
}

func (v VoterID) String() string { return string(v) }

// Role is the closed set of identity roles.
type Role string

const (
	RoleVoter   Role = "Voter"
	RoleAuditor Role = "Auditor"
	RoleAdmin   Role = "Admin"
)

// ParseRole accepts exactly the three role names. Empty defaults to Voter.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case "", RoleVoter:
		return RoleVoter, nil
	case RoleAuditor:
		return RoleAuditor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "role must be Voter, Auditor or Admin")
}

// CanControlElection reports whether the role may open or close the election
// and read the audit trail.
func (r Role) CanControlElection() bool {
	switch r {
	case RoleAuditor, RoleAdmin:
		return true
	case RoleVoter:
		return false
	}
	return false
}

// MasterIdentity is a citizen record from the external master directory.
type MasterIdentity struct {
	VoterID    VoterID
	DistrictID string
	Role       Role
}

// Record is a registered voter.
type Record struct {
	VoterID      VoterID
	DistrictID   string
	Role         Role
	Face         biometric.Descriptor
	Fingerprint  biometric.Descriptor
	HasVoted     bool
	RegisteredAt time.Time
	VotedAt      *time.Time
}

// DescriptorSet is the projection scanned for duplicates at enrolment.
type DescriptorSet struct {
	VoterID     VoterID
	Face        biometric.Descriptor
	Fingerprint biometric.Descriptor
}

// RegisterRequest carries an enrolment. Face may be a sample or an embedding;
// Fingerprint is the raw template, digested before storage.
type RegisterRequest struct {
	VoterID     VoterID
	Face        biometric.Sample
	FaceHash    string
	Fingerprint []byte
	// FingerprintHash lets a capture station send a precomputed digest.
	FingerprintHash string
}

// RegistrationResult is returned on successful enrolment.
type RegistrationResult struct {
	VoterID      VoterID   `json:"voter_id"`
	DistrictID   string    `json:"district_id"`
	Registered   bool      `json:"registered"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Status is the public view of a voter.
type Status struct {
	VoterID    VoterID `json:"voter_id"`
	Registered bool    `json:"registered"`
	HasVoted   bool    `json:"has_voted"`
	DistrictID string  `json:"district_id,omitempty"`
}

// Counts summarises the roll.
type Counts struct {
	Registered int `json:"registered"`
	Voted      int `json:"voted"`
}
