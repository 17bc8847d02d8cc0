package challenge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/requestcontext"
)

// Store holds at most one challenge per voter.
type Store interface {
	// Put stores c for c.VoterID, replacing any previous challenge.
	Put(ctx context.Context, c Challenge, ttl time.Duration) error
	// Take atomically reads and deletes the challenge for voterID. It
	// returns sentinel.ErrNotFound when none is outstanding or it expired.
	Take(ctx context.Context, voterID string) (*Challenge, error)
}

// Verifier binds challenges to a credential protocol.
type Verifier interface {
	Begin(ctx context.Context, voterID string) (*Begun, error)
	Verify(ctx context.Context, c Challenge, proof []byte) error
}

// Broker issues and redeems challenges.
type Broker struct {
	store         Store
	verifier      Verifier
	ttl           time.Duration
	verifyTimeout time.Duration
	logger        *slog.Logger
}

type Option func(*Broker)

// WithTTL sets how long an issued challenge stays redeemable.
func WithTTL(ttl time.Duration) Option {
	return func(b *Broker) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithVerifyTimeout bounds a single proof verification.
func WithVerifyTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.verifyTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker constructs a Broker.
func NewBroker(store Store, verifier Verifier, opts ...Option) *Broker {
	b := &Broker{
		store:         store,
		verifier:      verifier,
		ttl:           2 * time.Minute,
		verifyTimeout: 3 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Issue creates a fresh challenge for voterID, replacing any outstanding one.
func (b *Broker) Issue(ctx context.Context, voterID string) (*Issued, error) {
	begun, err := b.verifier.Begin(ctx, voterID)
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create challenge")
	}

	now := requestcontext.Now(ctx).UTC()
	c := Challenge{
		VoterID:  voterID,
		Value:    begun.Challenge,
		Session:  begun.Session,
		IssuedAt: now,
	}
	if err := b.store.Put(ctx, c, b.ttl); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store challenge")
	}

	return &Issued{
		VoterID:   voterID,
		Challenge: begun.Challenge,
		ExpiresAt: now.Add(b.ttl),
		Options:   begun.Options,
	}, nil
}

// Redeem consumes the outstanding challenge for voterID and verifies proof
// against it. The challenge is gone afterwards whether or not proof holds.
func (b *Broker) Redeem(ctx context.Context, voterID string, proof []byte) error {
	c, err := b.store.Take(ctx, voterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return dErrors.New(dErrors.CodeChallengeMissingOrExpired, "no outstanding challenge for voter")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load challenge")
	}

	if len(proof) == 0 {
		return dErrors.New(dErrors.CodeCredentialVerificationFailed, "challenge proof is required")
	}
	if err := b.verify(ctx, *c, proof); err != nil {
		b.logger.WarnContext(ctx, "credential verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"voter_id", voterID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeCredentialVerificationFailed, "credential verification failed")
	}
	return nil
}

// Discard drops any outstanding challenge for voterID. Nothing outstanding
// is not an error.
func (b *Broker) Discard(ctx context.Context, voterID string) error {
	if _, err := b.store.Take(ctx, voterID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to discard challenge")
	}
	return nil
}

func (b *Broker) verify(ctx context.Context, c Challenge, proof []byte) error {
	ctx, cancel := context.WithTimeout(ctx, b.verifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- b.verifier.Verify(ctx, c, proof)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
