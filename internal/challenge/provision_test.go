package challenge

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain/internal/identity"
	dErrors "votechain/pkg/domain-errors"
)

type stubVoters map[identity.VoterID]bool

func (s stubVoters) Status(_ context.Context, id identity.VoterID) (*identity.Status, error) {
	return &identity.Status{VoterID: id, Registered: s[id]}, nil
}

func TestCredentialValidate(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	wc, err := json.Marshal(webauthn.Credential{ID: []byte("cred-1"), PublicKey: []byte("cose-key")})
	require.NoError(t, err)

	tests := []struct {
		name string
		cred Credential
		ok   bool
	}{
		{"ed25519 key", Credential{ID: "k1", VoterID: "ABC123456", Kind: CredentialEd25519, Data: pub}, true},
		{"short ed25519 key", Credential{ID: "k1", VoterID: "ABC123456", Kind: CredentialEd25519, Data: pub[:8]}, false},
		{"webauthn credential", Credential{ID: CredentialID([]byte("cred-1")), VoterID: "ABC123456", Kind: CredentialWebAuthn, Data: wc}, true},
		{"webauthn id mismatch", Credential{ID: "other", VoterID: "ABC123456", Kind: CredentialWebAuthn, Data: wc}, false},
		{"webauthn garbage", Credential{ID: "x", VoterID: "ABC123456", Kind: CredentialWebAuthn, Data: []byte("{")}, false},
		{"unknown kind", Credential{ID: "k1", VoterID: "ABC123456", Kind: "totp", Data: pub}, false},
		{"missing id", Credential{VoterID: "ABC123456", Kind: CredentialEd25519, Data: pub}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.Is(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestProvision(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	creds := &memCredentials{}
	p := NewProvisioner(creds, stubVoters{"ABC123456": true})
	ctx := context.Background()

	err = p.Provision(ctx, Credential{ID: "k1", VoterID: "DEF654321", Kind: CredentialEd25519, Data: pub})
	assert.True(t, dErrors.Is(err, dErrors.CodeUnregisteredVoter), "got %v", err)

	require.NoError(t, p.Provision(ctx, Credential{ID: "k1", VoterID: "ABC123456", Kind: CredentialEd25519, Data: pub}))
	stored, err := creds.ListByVoter(ctx, "ABC123456")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].CreatedAt.IsZero())
}
