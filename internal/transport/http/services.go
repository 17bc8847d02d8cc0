package httptransport

import (
	"context"

	"votechain/internal/challenge"
	"votechain/internal/election"
	"votechain/internal/identity"
	jwttoken "votechain/internal/jwt_token"
	"votechain/internal/ledger"
	"votechain/internal/vote"
	"votechain/pkg/platform/audit"
)

// VoteService casts ballots.
type VoteService interface {
	CastVote(ctx context.Context, req vote.CastRequest) (*vote.Receipt, error)
}

// LedgerService is the read side of the vote chain.
type LedgerService interface {
	Chain(ctx context.Context) ([]ledger.Block, error)
	ValidateChain(ctx context.Context) (*ledger.Validation, error)
	VerifyByHash(ctx context.Context, hash string) (*ledger.BlockVerification, error)
	Receipt(ctx context.Context, voterID string) (*ledger.Block, error)
	Tally(ctx context.Context) (*ledger.Results, error)
}

// RegistryService enrols voters and answers roll questions.
type RegistryService interface {
	Register(ctx context.Context, req identity.RegisterRequest) (*identity.RegistrationResult, error)
	Status(ctx context.Context, id identity.VoterID) (*identity.Status, error)
	Counts(ctx context.Context) (identity.Counts, error)
}

// ChallengeService issues single-use challenges.
type ChallengeService interface {
	Issue(ctx context.Context, voterID string) (*challenge.Issued, error)
}

// CredentialService stores a voter's public credential.
type CredentialService interface {
	Provision(ctx context.Context, c challenge.Credential) error
}

// ElectionService controls the election switch and the candidate roster.
type ElectionService interface {
	Status(ctx context.Context) (election.State, error)
	Start(ctx context.Context, op election.Operator) (election.State, error)
	Stop(ctx context.Context, op election.Operator) (election.State, error)
	Candidates(ctx context.Context, district string) ([]election.Candidate, error)
	AddCandidate(ctx context.Context, c election.Candidate) error
}

// AuditService lists recorded audit events, newest first.
type AuditService interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// TokenIssuer mints operator bearer tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, operatorID identity.VoterID) (*jwttoken.OperatorToken, error)
}
