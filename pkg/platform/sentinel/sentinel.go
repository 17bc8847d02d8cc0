package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain errors at their boundary.
//
//   - ErrNotFound: record does not exist
//   - ErrConflict: a unique key (voter id, fingerprint digest, block index) is taken
//   - ErrExpired: a challenge outlived its TTL
//   - ErrAlreadyUsed: a one-shot flag or token was already consumed
//   - ErrUnavailable: backing service unreachable
//
// Input validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
