// Package challenge issues single-use challenges for the hardware-credential
// step of vote casting and redeems them against a voter's stored credential.
//
// Per voter the state is NONE, ISSUED or CONSUMED. Issuing overwrites any
// outstanding challenge; redeeming removes it whatever the verification
// outcome, so a challenge is never checked twice.
package challenge

import (
	"time"
)

// Challenge is an outstanding, unconsumed challenge.
type Challenge struct {
	VoterID string `json:"voter_id"`
	// Value is the base64url challenge the credential must sign.
	Value string `json:"value"`
	// Session is verifier state bound to Value, opaque to the broker.
	Session  []byte    `json:"session,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// Issued is what the voter's client receives.
type Issued struct {
	VoterID   string    `json:"voter_id"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
	// Options are protocol-specific client parameters, e.g. WebAuthn
	// PublicKeyCredentialRequestOptions.
	Options any `json:"options,omitempty"`
}

// CredentialKind names how a credential's Data is interpreted.
type CredentialKind string

const (
	// CredentialWebAuthn holds a JSON-encoded webauthn.Credential.
	CredentialWebAuthn CredentialKind = "webauthn"
	// CredentialEd25519 holds a raw 32-byte Ed25519 public key.
	CredentialEd25519 CredentialKind = "ed25519"
)

// Credential is a voter's externally provisioned public credential.
type Credential struct {
	ID        string         `json:"id"`
	VoterID   string         `json:"voter_id"`
	Kind      CredentialKind `json:"kind"`
	Data      []byte         `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Begun is a verifier's half of issuing a challenge.
type Begun struct {
	Challenge string
	Session   []byte
	Options   any
}
