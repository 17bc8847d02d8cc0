// Package election holds the election-wide switch and the candidate roster.
package election

import (
	"time"

	"votechain/internal/identity"
)

// State is the election switch.
type State struct {
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// Candidate is a roster entry. An empty DistrictID makes the candidate
// eligible in every district.
type Candidate struct {
	ID         string `json:"candidate_id"`
	Name       string `json:"name"`
	Party      string `json:"party,omitempty"`
	DistrictID string `json:"district_id,omitempty"`
}

// Operator is an authenticated caller acting on the election.
type Operator struct {
	ID   string
	Role identity.Role
}
