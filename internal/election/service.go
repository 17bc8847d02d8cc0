package election

import (
	"context"
	"log/slog"
	"time"

	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/requestcontext"
)

// Store persists the switch and roster.
type Store interface {
	State(ctx context.Context) (State, error)
	SetActive(ctx context.Context, active bool, by string, at time.Time) error
	ListCandidates(ctx context.Context) ([]Candidate, error)
	PutCandidate(ctx context.Context, c Candidate) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service controls the election switch and answers roster questions.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current switch.
func (s *Service) Status(ctx context.Context) (State, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read election state")
	}
	return st, nil
}

// IsActive reports whether ballots are being accepted.
func (s *Service) IsActive(ctx context.Context) (bool, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Active, nil
}

// Start opens the election. Only auditors and admins may do so.
func (s *Service) Start(ctx context.Context, op Operator) (State, error) {
	return s.set(ctx, op, true)
}

// Stop closes the election. Only auditors and admins may do so.
func (s *Service) Stop(ctx context.Context, op Operator) (State, error) {
	return s.set(ctx, op, false)
}

func (s *Service) set(ctx context.Context, op Operator, active bool) (State, error) {
	if !op.Role.CanControlElection() {
		return State{}, dErrors.New(dErrors.CodeForbidden, "only auditors and admins can control the election")
	}
	now := requestcontext.Now(ctx).UTC()
	if err := s.store.SetActive(ctx, active, op.ID, now); err != nil {
		return State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update election state")
	}

	action := audit.EventElectionStopped
	if active {
		action = audit.EventElectionStarted
	}
	s.logger.InfoContext(ctx, "election state changed",
		"request_id", requestcontext.RequestID(ctx),
		"active", active,
		"operator_id", op.ID,
	)
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			Action:  string(action),
			Subject: "election",
			ActorID: op.ID,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
		}
	}
	return State{Active: active, UpdatedAt: now, UpdatedBy: op.ID}, nil
}

// Candidates lists the roster for district, or the whole roster when
// district is empty.
func (s *Service) Candidates(ctx context.Context, district string) ([]Candidate, error) {
	all, err := s.store.ListCandidates(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidates")
	}
	if district == "" {
		return all, nil
	}
	out := make([]Candidate, 0, len(all))
	for _, c := range all {
		if c.DistrictID == "" || c.DistrictID == district {
			out = append(out, c)
		}
	}
	return out, nil
}

// CheckCandidate rejects a candidate that does not stand in district. With
// no roster configured every candidate is accepted.
func (s *Service) CheckCandidate(ctx context.Context, district, candidate string) error {
	all, err := s.store.ListCandidates(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidates")
	}
	if len(all) == 0 {
		return nil
	}
	for _, c := range all {
		if c.ID == candidate && (c.DistrictID == "" || c.DistrictID == district) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvalidCandidate, "candidate does not stand in this district")
}

// AddCandidate adds or replaces a roster entry.
func (s *Service) AddCandidate(ctx context.Context, c Candidate) error {
	if c.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "candidate_id is required")
	}
	if err := s.store.PutCandidate(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save candidate")
	}
	return nil
}
