package constants

import "time"

const (
	// DefaultProbeTimeout bounds a single reachability probe attempt.
	// Failed probes must add negligible startup latency.
	DefaultProbeTimeout = 100 * time.Millisecond
	// SessionValidationTimeout bounds the remote session validation call.
	SessionValidationTimeout = 10 * time.Second
	// DiscoveryTimeout bounds the best-effort model discovery fetch.
	DiscoveryTimeout = 2 * time.Second
	// TokenExchangeTimeout bounds the code-for-token exchange during login.
	TokenExchangeTimeout = 30 * time.Second
	// CallbackShutdownTimeout bounds graceful callback server shutdown.
	CallbackShutdownTimeout = 5 * time.Second
	// WizardShutdownTimeout bounds graceful wizard server shutdown.
	WizardShutdownTimeout = 5 * time.Second
)
