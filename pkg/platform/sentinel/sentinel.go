package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors:
//   - ErrNotFound: no row for the key
//   - ErrConflict: unique key already taken
//   - ErrExpired: record is past its expiry
//   - ErrExhausted: attempt budget already spent
//   - ErrInvalidState: record is in a terminal state for the requested transition
//   - ErrUnavailable: backing store temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrExhausted    = errors.New("exhausted")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
