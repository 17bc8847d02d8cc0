package vote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"votechain/internal/biometric"
	"votechain/internal/identity"
	"votechain/internal/ledger"
	"votechain/internal/vote/metrics"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/tx"
	"votechain/pkg/requestcontext"
)

var tracer = otel.Tracer("votechain/vote")

// Election answers whether ballots are accepted and for whom.
type Election interface {
	IsActive(ctx context.Context) (bool, error)
	CheckCandidate(ctx context.Context, districtID, candidateID string) error
}

// Registry is the slice of identity.Registry the orchestrator needs.
type Registry interface {
	Find(ctx context.Context, id identity.VoterID) (*identity.Record, error)
	Verify(ctx context.Context, id identity.VoterID, face, fingerprint biometric.Sample) bool
	MarkVoted(ctx context.Context, id identity.VoterID, at time.Time) error
}

// Broker redeems or drops the voter's outstanding challenge.
type Broker interface {
	Redeem(ctx context.Context, voterID string, proof []byte) error
	Discard(ctx context.Context, voterID string) error
}

// Ledger appends the ballot block.
type Ledger interface {
	AppendVote(ctx context.Context, v ledger.Vote) (*ledger.Block, error)
}

// Detector observes casting rate per district.
type Detector interface {
	ObserveAndCheck(districtID string, ts time.Time) bool
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Deps groups the collaborators every Service needs.
type Deps struct {
	Election Election
	Registry Registry
	Broker   Broker
	Ledger   Ledger
	Detector Detector
	Tx       tx.Runner
}

// Service runs the CastVote state machine.
type Service struct {
	election       Election
	registry       Registry
	broker         Broker
	ledger         Ledger
	detector       Detector
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. Every dependency in deps is required.
func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Election == nil:
		return nil, errors.New("election is required")
	case deps.Registry == nil:
		return nil, errors.New("registry is required")
	case deps.Broker == nil:
		return nil, errors.New("challenge broker is required")
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Detector == nil:
		return nil, errors.New("anomaly detector is required")
	case deps.Tx == nil:
		return nil, errors.New("tx runner is required")
	}
	s := &Service{
		election: deps.Election,
		registry: deps.Registry,
		broker:   deps.Broker,
		ledger:   deps.Ledger,
		detector: deps.Detector,
		tx:       deps.Tx,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CastVote checks eligibility, verifies the voter's biometrics and
// challenge proof, then marks the voter and appends the ballot as one unit.
// Any rejection after the request is well formed leaves the voter without
// a live challenge: one is either redeemed or discarded.
func (s *Service) CastVote(ctx context.Context, req CastRequest) (receipt *Receipt, err error) {
	start := time.Now()
	stage := StageStart
	ctx, span := tracer.Start(ctx, "vote.CastVote")
	span.SetAttributes(
		attribute.String("voter_id", req.VoterID.String()),
		attribute.String("district_id", req.DistrictID),
	)
	defer func() {
		s.metrics.ObserveCast(start)
		span.SetAttributes(attribute.String("stage", string(stage)))
		if err != nil {
			code := string(dErrors.CodeOf(err))
			s.metrics.IncBallot(code)
			span.RecordError(err)
			span.SetStatus(codes.Error, code)
			s.logger.InfoContext(ctx, "ballot rejected",
				"request_id", requestcontext.RequestID(ctx),
				"voter_id", req.VoterID.String(),
				"stage", stage,
				"reason", code,
			)
		} else {
			s.metrics.IncBallot("ok")
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.checkEligibility(ctx, req)
	if err != nil {
		s.discardChallenge(ctx, req.VoterID)
		return nil, err
	}
	stage = StageEligibilityChecked

	if !s.registry.Verify(ctx, req.VoterID, req.Face, req.Fingerprint) {
		s.discardChallenge(ctx, req.VoterID)
		s.fraud(ctx, audit.EventBiometricMismatch, req, "presented biometrics do not match enrolment")
		return nil, dErrors.New(dErrors.CodeBiometricMismatch, "biometric verification failed")
	}
	stage = StageBiometricVerified

	if err := s.broker.Redeem(ctx, req.VoterID.String(), req.ChallengeProof); err != nil {
		s.fraud(ctx, audit.EventChallengeFailed, req, string(dErrors.CodeOf(err)))
		return nil, err
	}
	stage = StageChallengeRedeemed

	now := requestcontext.Now(ctx)
	if s.detector.ObserveAndCheck(rec.DistrictID, now) {
		s.burst(ctx, rec.DistrictID)
	}

	block, err := s.commit(ctx, req, now)
	if err != nil {
		return nil, err
	}
	stage = StageCommitted

	s.emit(ctx, audit.Event{
		Action:     string(audit.EventVoteCast),
		Subject:    req.VoterID.String(),
		DistrictID: rec.DistrictID,
	})
	return &Receipt{BlockHash: block.Hash, Timestamp: block.Timestamp}, nil
}

func (s *Service) checkEligibility(ctx context.Context, req CastRequest) (*identity.Record, error) {
	active, err := s.election.IsActive(ctx)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, dErrors.New(dErrors.CodeElectionClosed, "the election is not accepting ballots")
	}

	rec, err := s.registry.Find(ctx, req.VoterID)
	if err != nil {
		return nil, err
	}
	if rec.HasVoted {
		s.fraud(ctx, audit.EventDuplicateVote, req, "voter has already voted")
		return nil, dErrors.New(dErrors.CodeAlreadyVoted, "voter has already voted")
	}
	if rec.DistrictID != req.DistrictID {
		return nil, dErrors.New(dErrors.CodeValidation, "district does not match the voter's registration")
	}
	if err := s.election.CheckCandidate(ctx, req.DistrictID, req.CandidateID); err != nil {
		return nil, err
	}
	return rec, nil
}

// commit flips has_voted and appends the block in one unit of work. The
// compare-and-set on has_voted decides the winner among concurrent casts.
func (s *Service) commit(ctx context.Context, req CastRequest, at time.Time) (*ledger.Block, error) {
	start := time.Now()
	defer s.metrics.ObserveCommit(start)

	var block *ledger.Block
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.registry.MarkVoted(ctx, req.VoterID, at); err != nil {
			return err
		}
		b, err := s.ledger.AppendVote(ctx, ledger.Vote{
			VoterID:     req.VoterID.String(),
			DistrictID:  req.DistrictID,
			CandidateID: req.CandidateID,
		})
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeAlreadyVoted) {
			s.fraud(ctx, audit.EventDuplicateVote, req, "concurrent ballot already committed")
			return nil, err
		}
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit ballot")
	}
	return block, nil
}

// discardChallenge drops the voter's outstanding challenge so a rejected
// proof cannot be replayed. Failures are logged and never mask the rejection.
func (s *Service) discardChallenge(ctx context.Context, id identity.VoterID) {
	if err := s.broker.Discard(ctx, id.String()); err != nil {
		s.logger.WarnContext(ctx, "failed to discard challenge",
			"request_id", requestcontext.RequestID(ctx),
			"voter_id", id.String(),
			"error", err,
		)
	}
}

func (s *Service) burst(ctx context.Context, districtID string) {
	s.logger.WarnContext(ctx, "voting burst detected",
		"request_id", requestcontext.RequestID(ctx),
		"district_id", districtID,
	)
	s.emit(ctx, audit.SecurityEvent{
		Subject:    districtID,
		Action:     audit.EventVotingBurst,
		DistrictID: districtID,
		Reason:     "casting rate above threshold",
		Severity:   audit.SeverityInfo,
	}.ToEvent())
}

// fraud records a suspicion. It never fails the caller.
func (s *Service) fraud(ctx context.Context, action audit.AuditEvent, req CastRequest, reason string) {
	s.metrics.IncFraudSuspicion(string(action))
	s.logger.WarnContext(ctx, "fraud suspicion",
		"request_id", requestcontext.RequestID(ctx),
		"action", action,
		"voter_id", req.VoterID.String(),
		"district_id", req.DistrictID,
		"reason", reason,
	)
	s.emit(ctx, audit.SecurityEvent{
		Subject:    req.VoterID.String(),
		Action:     action,
		DistrictID: req.DistrictID,
		Reason:     reason,
		Severity:   audit.SeverityWarning,
	}.ToEvent())
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", event.Action,
			"error", err,
		)
	}
}
