package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"votechain/internal/biometric"
	"votechain/internal/identity/metrics"
	dErrors "votechain/pkg/domain-errors"
	"votechain/pkg/platform/audit"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/requestcontext"
)

var tracer = otel.Tracer("votechain/identity")

// MasterDirectory is the external citizen directory consulted at enrolment.
type MasterDirectory interface {
	FindMaster(ctx context.Context, id VoterID) (*MasterIdentity, error)
}

// Store persists registered voters.
type Store interface {
	FindByVoterID(ctx context.Context, id VoterID) (*Record, error)
	ListDescriptors(ctx context.Context) ([]DescriptorSet, error)
	Create(ctx context.Context, rec *Record) error
	// MarkVoted flips has_voted only if it is still false. It returns
	// sentinel.ErrAlreadyUsed when the flag was already set.
	MarkVoted(ctx context.Context, id VoterID, at time.Time) error
	Counts(ctx context.Context) (Counts, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Registry enforces one enrolment per person and verifies presented
// biometrics against enrolled descriptors.
type Registry struct {
	master         MasterDirectory
	store          Store
	matcher        *biometric.Matcher
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics

	// registerMu serializes the duplicate scan with the insert that follows.
	registerMu sync.Mutex
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Registry) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New constructs a Registry.
func New(master MasterDirectory, store Store, matcher *biometric.Matcher, opts ...Option) *Registry {
	r := &Registry{
		master:  master,
		store:   store,
		matcher: matcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register enrols a voter listed in the master directory.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (res *RegistrationResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "identity.Register")
	span.SetAttributes(attribute.String("voter_id", req.VoterID.String()))
	defer func() {
		r.metrics.ObserveRegister(start)
		if err != nil {
			r.metrics.IncRegistration(string(dErrors.CodeOf(err)))
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		} else {
			r.metrics.IncRegistration("ok")
		}
		span.End()
	}()

	master, err := r.master.FindMaster(ctx, req.VoterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.emitSecurity(ctx, audit.EventUnknownIdentity, req.VoterID.String(), "", "voter id not in master directory")
			return nil, dErrors.New(dErrors.CodeUnknownIdentity, "voter id is not in the master directory")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up master identity")
	}

	r.registerMu.Lock()
	defer r.registerMu.Unlock()

	if _, err := r.store.FindByVoterID(ctx, req.VoterID); err == nil {
		return nil, dErrors.New(dErrors.CodeAlreadyRegistered, "voter is already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}

	face, fingerprint, err := r.describe(ctx, req)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.ListDescriptors(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load descriptors")
	}
	r.metrics.SetScanSize(len(existing))
	if clash, which := r.findDuplicate(existing, face, fingerprint); clash != "" {
		r.logger.WarnContext(ctx, "duplicate biometric at registration",
			"request_id", requestcontext.RequestID(ctx),
			"voter_id", req.VoterID,
			"existing_voter_id", clash,
			"descriptor", which,
		)
		r.emitSecurity(ctx, audit.EventDuplicateBiometric, req.VoterID.String(), master.DistrictID,
			which+" descriptor already enrolled")
		return nil, dErrors.New(dErrors.CodeDuplicateDescriptor, which+" descriptor matches an existing registration")
	}

	now := requestcontext.Now(ctx).UTC()
	rec := &Record{
		VoterID:      req.VoterID,
		DistrictID:   master.DistrictID,
		Role:         master.Role,
		Face:         face,
		Fingerprint:  fingerprint,
		RegisteredAt: now,
	}
	if err := r.store.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, r.classifyConflict(ctx, req.VoterID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
	}

	r.emit(ctx, audit.Event{
		Action:     string(audit.EventVoterRegistered),
		Subject:    req.VoterID.String(),
		DistrictID: master.DistrictID,
	})
	r.logger.InfoContext(ctx, "voter registered",
		"request_id", requestcontext.RequestID(ctx),
		"voter_id", req.VoterID,
		"district_id", master.DistrictID,
	)

	return &RegistrationResult{
		VoterID:      rec.VoterID,
		DistrictID:   rec.DistrictID,
		Registered:   true,
		RegisteredAt: rec.RegisteredAt,
	}, nil
}

func (r *Registry) describe(ctx context.Context, req RegisterRequest) (face, fingerprint biometric.Descriptor, err error) {
	switch {
	case req.FaceHash != "":
		face = biometric.Descriptor{Kind: biometric.KindHash, Hash: req.FaceHash}
	default:
		face, err = r.matcher.DescribeFace(ctx, req.Face)
		if err != nil {
			return face, fingerprint, err
		}
	}

	switch {
	case req.FingerprintHash != "":
		fingerprint = biometric.Descriptor{Kind: biometric.KindHash, Hash: req.FingerprintHash}
	case len(req.Fingerprint) > 0:
		fingerprint = biometric.HashDescriptor(req.Fingerprint)
	default:
		return face, fingerprint, dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}

	if err := face.Validate(); err != nil {
		return face, fingerprint, err
	}
	if err := fingerprint.Validate(); err != nil {
		return face, fingerprint, err
	}
	return face, fingerprint, nil
}

// findDuplicate scans every enrolled set and returns the first clashing voter
// and which descriptor clashed ("fingerprint" or "face").
func (r *Registry) findDuplicate(existing []DescriptorSet, face, fingerprint biometric.Descriptor) (string, string) {
	for _, set := range existing {
		if r.matcher.Similar(set.Fingerprint, fingerprint) {
			return set.VoterID.String(), "fingerprint"
		}
		if r.matcher.Similar(set.Face, face) {
			return set.VoterID.String(), "face"
		}
	}
	return "", ""
}

// classifyConflict resolves a unique violation raised by the store after the
// scan passed, which happens when another process enrolled concurrently.
func (r *Registry) classifyConflict(ctx context.Context, id VoterID) error {
	if _, err := r.store.FindByVoterID(ctx, id); err == nil {
		return dErrors.New(dErrors.CodeAlreadyRegistered, "voter is already registered")
	}
	return dErrors.New(dErrors.CodeDuplicateDescriptor, "fingerprint descriptor matches an existing registration")
}

// Verify reports whether both presented biometrics match the enrolled
// descriptors. It fails closed on any missing descriptor or lookup error.
func (r *Registry) Verify(ctx context.Context, id VoterID, face, fingerprint biometric.Sample) bool {
	rec, err := r.store.FindByVoterID(ctx, id)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			r.logger.ErrorContext(ctx, "identity lookup failed during verification",
				"request_id", requestcontext.RequestID(ctx),
				"voter_id", id,
				"error", err,
			)
		}
		r.metrics.IncVerificationFailure()
		return false
	}
	if rec.Face.IsZero() || rec.Fingerprint.IsZero() {
		r.metrics.IncVerificationFailure()
		return false
	}
	ok := r.matcher.Match(ctx, rec.Face, face) && r.matcher.Match(ctx, rec.Fingerprint, fingerprint)
	if !ok {
		r.metrics.IncVerificationFailure()
	}
	return ok
}

// Find returns the registered record for id.
func (r *Registry) Find(ctx context.Context, id VoterID) (*Record, error) {
	rec, err := r.store.FindByVoterID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnregisteredVoter, "voter is not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}
	return rec, nil
}

// Status reports registration and participation without descriptors.
func (r *Registry) Status(ctx context.Context, id VoterID) (*Status, error) {
	rec, err := r.store.FindByVoterID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &Status{VoterID: id}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}
	return &Status{
		VoterID:    rec.VoterID,
		Registered: true,
		HasVoted:   rec.HasVoted,
		DistrictID: rec.DistrictID,
	}, nil
}

// Counts summarises the roll.
func (r *Registry) Counts(ctx context.Context) (Counts, error) {
	c, err := r.store.Counts(ctx)
	if err != nil {
		return Counts{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count identities")
	}
	return c, nil
}

// MarkVoted flips the has-voted flag. Callers run it inside the same unit
// of work as the ledger append.
func (r *Registry) MarkVoted(ctx context.Context, id VoterID, at time.Time) error {
	if err := r.store.MarkVoted(ctx, id, at); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return dErrors.New(dErrors.CodeAlreadyVoted, "voter has already voted")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeUnregisteredVoter, "voter is not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record participation")
	}
	return nil
}

func (r *Registry) emit(ctx context.Context, event audit.Event) {
	if r.auditPublisher == nil {
		return
	}
	if err := r.auditPublisher.Emit(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", event.Action,
			"error", err,
		)
	}
}

func (r *Registry) emitSecurity(ctx context.Context, action audit.AuditEvent, subject, district, reason string) {
	r.emit(ctx, audit.SecurityEvent{
		Subject:    subject,
		Action:     action,
		DistrictID: district,
		Reason:     reason,
		Severity:   audit.SeverityWarning,
	}.ToEvent())
}
