package challenge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/requestcontext"
)

// Relying is the subset of *webauthn.WebAuthn used for assertions.
type Relying interface {
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, parsedResponse *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// WebAuthnConfig controls the relying party.
type WebAuthnConfig struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
}

// NewRelyingParty builds the go-webauthn relying party.
func NewRelyingParty(cfg WebAuthnConfig) (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
}

// WebAuthnVerifier verifies WebAuthn assertions made by a voter's
// registered authenticator.
type WebAuthnVerifier struct {
	rp          Relying
	credentials CredentialStore
	logger      *slog.Logger
}

type WebAuthnOption func(*WebAuthnVerifier)

func WithVerifierLogger(logger *slog.Logger) WebAuthnOption {
	return func(v *WebAuthnVerifier) {
		v.logger = logger
	}
}

// NewWebAuthnVerifier returns a verifier backed by rp.
func NewWebAuthnVerifier(rp Relying, credentials CredentialStore, opts ...WebAuthnOption) *WebAuthnVerifier {
	v := &WebAuthnVerifier{rp: rp, credentials: credentials, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *WebAuthnVerifier) Begin(ctx context.Context, voterID string) (*Begun, error) {
	user, err := v.loadUser(ctx, voterID)
	if err != nil {
		return nil, err
	}
	if len(user.credentials) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no hardware credential registered for voter")
	}
	assertion, session, err := v.rp.BeginLogin(user,
		webauthn.WithUserVerification(protocol.VerificationRequired))
	if err != nil {
		return nil, fmt.Errorf("begin webauthn login: %w", err)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode webauthn session: %w", err)
	}
	return &Begun{
		Challenge: session.Challenge,
		Session:   payload,
		Options:   assertion.Response,
	}, nil
}

// Verify parses proof as the JSON PublicKeyCredential returned by
// navigator.credentials.get and validates it against the stored session.
func (v *WebAuthnVerifier) Verify(ctx context.Context, c Challenge, proof []byte) error {
	var session webauthn.SessionData
	if err := json.Unmarshal(c.Session, &session); err != nil {
		return fmt.Errorf("decode webauthn session: %w", err)
	}
	if session.Challenge != c.Value {
		return errors.New("session does not belong to this challenge")
	}
	parsed, err := protocol.ParseCredentialRequestResponseBytes(proof)
	if err != nil {
		return fmt.Errorf("parse assertion: %w", err)
	}
	user, err := v.loadUser(ctx, c.VoterID)
	if err != nil {
		return err
	}
	credential, err := v.rp.ValidateLogin(user, session, parsed)
	if err != nil {
		return fmt.Errorf("validate assertion: %w", err)
	}
	v.advanceCounter(ctx, c.VoterID, *credential)
	return nil
}

// advanceCounter persists the signature counter for clone detection. The
// assertion has already been accepted, so a storage failure is only logged.
func (v *WebAuthnVerifier) advanceCounter(ctx context.Context, voterID string, wc webauthn.Credential) {
	if err := v.store(ctx, voterID, wc); err != nil {
		v.logger.ErrorContext(ctx, "failed to persist webauthn sign counter",
			"request_id", requestcontext.RequestID(ctx),
			"voter_id", voterID,
			"credential_id", CredentialID(wc.ID),
			"error", err,
		)
	}
}

func (v *WebAuthnVerifier) loadUser(ctx context.Context, voterID string) (*voterUser, error) {
	creds, err := v.credentials.ListByVoter(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	user := &voterUser{voterID: voterID}
	for _, c := range creds {
		if c.Kind != CredentialWebAuthn {
			continue
		}
		var wc webauthn.Credential
		if err := json.Unmarshal(c.Data, &wc); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", c.ID, err)
		}
		user.credentials = append(user.credentials, wc)
	}
	return user, nil
}

func (v *WebAuthnVerifier) store(ctx context.Context, voterID string, wc webauthn.Credential) error {
	data, err := json.Marshal(wc)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return v.credentials.Put(ctx, Credential{
		ID:      CredentialID(wc.ID),
		VoterID: voterID,
		Kind:    CredentialWebAuthn,
		Data:    data,
	})
}

// CredentialID renders a raw credential id as stored.
func CredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

type voterUser struct {
	voterID     string
	credentials []webauthn.Credential
}

func (u *voterUser) WebAuthnID() []byte {
	return []byte(u.voterID)
}

func (u *voterUser) WebAuthnName() string {
	return u.voterID
}

func (u *voterUser) WebAuthnDisplayName() string {
	return u.voterID
}

func (u *voterUser) WebAuthnIcon() string {
	return ""
}

func (u *voterUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
