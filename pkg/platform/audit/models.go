package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance for the
	// election record: registrations, ballots accepted, election toggles.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers fraud attempts and integrity alerts. These are
	// forwarded to the security sink when one is configured.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Events never carry a candidate choice: the audit trail records that a
// voter took part, the ledger records what was chosen, and nothing joins them.
type Event struct {
	ID         uuid.UUID
	Category   EventCategory
	Timestamp  time.Time
	Subject    string // voter id, district id or "election"
	Action     string
	DistrictID string
	Reason     string
	Severity   Severity
	RequestID  string
	ActorID    string // operator acting on the subject, when different
	IP         string
	Device     string
}

type AuditEvent string

const (
	// Registration
	EventVoterRegistered      AuditEvent = "voter_registered"
	EventRegistrationRejected AuditEvent = "registration_rejected"
	EventDuplicateBiometric   AuditEvent = "duplicate_biometric"
	EventUnknownIdentity      AuditEvent = "unknown_identity"

	// Voting
	EventVoteCast           AuditEvent = "vote_cast"
	EventBiometricMismatch  AuditEvent = "fraud_biometric_mismatch"
	EventChallengeFailed    AuditEvent = "fraud_challenge_failed"
	EventChallengeIssued    AuditEvent = "challenge_issued"
	EventDuplicateVote      AuditEvent = "duplicate_vote_attempt"
	EventVotingBurst        AuditEvent = "voting_burst"
	EventChainIntegrityFail AuditEvent = "chain_integrity_violation"

	// Election control
	EventElectionStarted AuditEvent = "election_started"
	EventElectionStopped AuditEvent = "election_stopped"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventVoterRegistered: CategoryCompliance,
	EventVoteCast:        CategoryCompliance,
	EventElectionStarted: CategoryCompliance,
	EventElectionStopped: CategoryCompliance,

	EventRegistrationRejected: CategorySecurity,
	EventDuplicateBiometric:   CategorySecurity,
	EventUnknownIdentity:      CategorySecurity,
	EventBiometricMismatch:    CategorySecurity,
	EventChallengeFailed:      CategorySecurity,
	EventDuplicateVote:        CategorySecurity,
	EventVotingBurst:          CategorySecurity,
	EventChainIntegrityFail:   CategorySecurity,

	EventChallengeIssued: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ParseCategory accepts the three category names; ok is false otherwise.
func ParseCategory(s string) (EventCategory, bool) {
	switch EventCategory(s) {
	case CategoryCompliance, CategorySecurity, CategoryOperations:
		return EventCategory(s), true
	}
	return "", false
}

// SecurityEvent captures fraud attempts and integrity alerts.
type SecurityEvent struct {
	Timestamp  time.Time
	Subject    string
	Action     AuditEvent
	DistrictID string
	Reason     string
	IP         string
	Device     string
	RequestID  string
	ActorID    string
	Severity   Severity
}

// ToEvent converts to the stored Event shape.
func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:   CategorySecurity,
		Timestamp:  e.Timestamp,
		Subject:    e.Subject,
		Action:     string(e.Action),
		DistrictID: e.DistrictID,
		Reason:     e.Reason,
		Severity:   e.Severity,
		RequestID:  e.RequestID,
		ActorID:    e.ActorID,
		IP:         e.IP,
		Device:     e.Device,
	}
}

// Filter narrows ListRecent. A zero Category matches all.
type Filter struct {
	Category EventCategory
	Limit    int
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, filter Filter) ([]Event, error)
}
