package challenge

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-webauthn/webauthn/webauthn"

	"votechain/internal/identity"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/requestcontext"
)

// Voters answers whether a voter is enrolled.
type Voters interface {
	Status(ctx context.Context, id identity.VoterID) (*identity.Status, error)
}

// Provisioner binds externally enrolled public credentials to registered
// voters.
type Provisioner struct {
	credentials CredentialStore
	voters      Voters
}

// NewProvisioner returns a Provisioner writing to credentials.
func NewProvisioner(credentials CredentialStore, voters Voters) *Provisioner {
	return &Provisioner{credentials: credentials, voters: voters}
}

// Provision validates c and stores it for a registered voter.
func (p *Provisioner) Provision(ctx context.Context, c Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	st, err := p.voters.Status(ctx, identity.VoterID(c.VoterID))
	if err != nil {
		return err
	}
	if !st.Registered {
		return dErrors.New(dErrors.CodeUnregisteredVoter, "voter is not registered")
	}
	c.CreatedAt = requestcontext.Now(ctx).UTC()
	if err := p.credentials.Put(ctx, c); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeConflict, "credential id is bound to another voter")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeUnregisteredVoter, "voter is not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}
	return nil
}

// Validate checks that Data decodes for Kind.
func (c Credential) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "credential id is required")
	}
	if c.VoterID == "" {
		return dErrors.New(dErrors.CodeValidation, "voter_id is required")
	}
	switch c.Kind {
	case CredentialEd25519:
		if len(c.Data) != ed25519.PublicKeySize {
			return dErrors.New(dErrors.CodeValidation, "ed25519 public key must be 32 bytes")
		}
	case CredentialWebAuthn:
		var wc webauthn.Credential
		if err := json.Unmarshal(c.Data, &wc); err != nil {
			return dErrors.New(dErrors.CodeValidation, "webauthn credential is not valid JSON")
		}
		if len(wc.ID) == 0 || len(wc.PublicKey) == 0 {
			return dErrors.New(dErrors.CodeValidation, "webauthn credential needs an id and public key")
		}
		if CredentialID(wc.ID) != c.ID {
			return dErrors.New(dErrors.CodeValidation, "credential id does not match the webauthn credential")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "kind must be webauthn or ed25519")
	}
	return nil
}
