package errors

import "errors"

// Startup failure taxonomy. Probe and discovery failures are absorbed where
// they occur and never appear here; everything below propagates to the
// startup sequence.
var (
	// ErrAuthTransient marks a network-level authentication failure,
	// eligible for a single automatic retry before surfacing.
	ErrAuthTransient = errors.New("authentication failed: transient network error")
	// ErrAuthRejected marks an invalid, expired or revoked credential.
	// Forces re-login; never retried silently.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrStoreCorrupt marks an unreadable credential file. Fatal for that
	// backend; never auto-deleted.
	ErrStoreCorrupt = errors.New("credential store corrupt")
	// ErrLoginCancelled marks an interactive login aborted by the user or
	// by process interrupt.
	ErrLoginCancelled = errors.New("interactive login cancelled")
	// ErrHeadless marks an interactive login required while onboarding is
	// bypassed.
	ErrHeadless = errors.New("interactive login required but headless mode is set")
	// ErrUnknownIdentity marks a backend identity the chain builder does
	// not know. Programmer error, not a runtime condition.
	ErrUnknownIdentity = errors.New("unknown backend identity")
)

// Is re-exports errors.Is so callers need a single errors package.
func Is(err, target error) bool { return errors.Is(err, target) }
