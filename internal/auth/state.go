package auth

// State is the authentication lifecycle for one resolved backend identity.
// Transitions are driven solely by the Orchestrator; Ready and Failed are
// terminal for the current process invocation.
type State string

const (
	StateUnauthenticated          State = "unauthenticated"
	StateAwaitingInteractiveLogin State = "awaiting-interactive-login"
	StateSessionPendingValidation State = "session-pending-validation"
	StateReady                    State = "ready"
	StateFailed                   State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// FailureReason distinguishes Failed outcomes so the caller can decide
// between retrying the whole process and forcing re-login.
type FailureReason string

const (
	FailureNone         FailureReason = ""
	FailureTransient    FailureReason = "transient"
	FailureRejected     FailureReason = "rejected"
	FailureCancelled    FailureReason = "cancelled"
	FailureStoreCorrupt FailureReason = "store-corrupt"
	FailureHeadless     FailureReason = "headless"
)
