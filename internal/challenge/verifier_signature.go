package challenge

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	dErrors "votechain/pkg/domain-errors"
)

// challengeSize is the number of random bytes in a challenge.
const challengeSize = 32

// CredentialStore holds voters' public credentials.
type CredentialStore interface {
	ListByVoter(ctx context.Context, voterID string) ([]Credential, error)
	Put(ctx context.Context, c Credential) error
}

// SignatureVerifier accepts a raw Ed25519 signature over the decoded
// challenge bytes, made with any of the voter's registered keys.
type SignatureVerifier struct {
	credentials CredentialStore
}

// NewSignatureVerifier returns a verifier over credentials.
func NewSignatureVerifier(credentials CredentialStore) *SignatureVerifier {
	return &SignatureVerifier{credentials: credentials}
}

func (v *SignatureVerifier) Begin(ctx context.Context, voterID string) (*Begun, error) {
	keys, err := v.keys(ctx, voterID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no hardware credential registered for voter")
	}
	buf := make([]byte, challengeSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	return &Begun{Challenge: base64.RawURLEncoding.EncodeToString(buf)}, nil
}

func (v *SignatureVerifier) Verify(ctx context.Context, c Challenge, proof []byte) error {
	msg, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return fmt.Errorf("decode challenge: %w", err)
	}
	if len(proof) != ed25519.SignatureSize {
		return errors.New("malformed signature")
	}
	keys, err := v.keys(ctx, c.VoterID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if ed25519.Verify(k, msg, proof) {
			return nil
		}
	}
	return errors.New("signature does not verify against any registered key")
}

func (v *SignatureVerifier) keys(ctx context.Context, voterID string) ([]ed25519.PublicKey, error) {
	creds, err := v.credentials.ListByVoter(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	var keys []ed25519.PublicKey
	for _, c := range creds {
		if c.Kind == CredentialEd25519 && len(c.Data) == ed25519.PublicKeySize {
			keys = append(keys, ed25519.PublicKey(c.Data))
		}
	}
	return keys, nil
}
