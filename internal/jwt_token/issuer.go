package jwttoken

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"votechain/internal/identity"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/requestcontext"
)

// MasterDirectory resolves an operator's role.
type MasterDirectory interface {
	FindMaster(ctx context.Context, id identity.VoterID) (*identity.MasterIdentity, error)
}

// OperatorToken is handed to an auditor or admin.
type OperatorToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Issuer mints operator tokens for master directory entries whose role
// allows election control.
type Issuer struct {
	directory MasterDirectory
	jwt       *JWTService
	ttl       time.Duration
	logger    *slog.Logger
}

// NewIssuer returns an Issuer minting tokens valid for ttl.
func NewIssuer(directory MasterDirectory, jwt *JWTService, ttl time.Duration, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{directory: directory, jwt: jwt, ttl: ttl, logger: logger}
}

// Issue returns a signed token for operatorID.
func (i *Issuer) Issue(ctx context.Context, operatorID identity.VoterID) (*OperatorToken, error) {
	master, err := i.directory.FindMaster(ctx, operatorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownIdentity, "operator is not in the master directory")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up operator")
	}
	token, err := i.jwt.GenerateOperatorToken(operatorID, master.Role, i.ttl)
	if err != nil {
		return nil, err
	}
	i.logger.InfoContext(ctx, "operator token issued",
		"request_id", requestcontext.RequestID(ctx),
		"operator_id", operatorID.String(),
		"role", master.Role,
	)
	return &OperatorToken{
		AccessToken: token,
		TokenType:   "Bearer",
		Role:        string(master.Role),
		ExpiresAt:   i.jwt.now().Add(i.ttl).UTC(),
	}, nil
}
