package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the static election data loaded at boot: the candidate roster and
// the master identity directory.
type Seed struct {
	Candidates []CandidateSeed `yaml:"candidates"`
	Masters    []MasterSeed    `yaml:"master_identities"`
}

// CandidateSeed is one roster entry. An empty district means national.
type CandidateSeed struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Party      string `yaml:"party"`
	DistrictID string `yaml:"district_id"`
}

// MasterSeed is one citizen record in the master directory.
type MasterSeed struct {
	VoterID    string `yaml:"voter_id"`
	DistrictID string `yaml:"district_id"`
	Role       string `yaml:"role"`
}

// LoadSeed reads a YAML seed file. An empty path yields an empty seed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return Seed{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes seed YAML.
func ParseSeed(raw []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	for i, c := range seed.Candidates {
		if c.ID == "" {
			return Seed{}, fmt.Errorf("candidate %d: id is required", i)
		}
	}
	for i, m := range seed.Masters {
		if m.VoterID == "" || m.DistrictID == "" {
			return Seed{}, fmt.Errorf("master identity %d: voter_id and district_id are required", i)
		}
	}
	return seed, nil
}
