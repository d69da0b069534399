package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"modelboot-go/internal/backend"
	"modelboot-go/internal/credential"
	booterrors "modelboot-go/internal/errors"
)

// LoginFlow obtains a session credential interactively. Implemented by
// LoginManager; faked in tests.
type LoginFlow interface {
	Login(ctx context.Context) (credential.Credential, error)
}

// Validator checks a stored session token against the remote provider.
type Validator interface {
	Validate(ctx context.Context, token string) error
}

// Orchestrator drives one resolved backend identity from unauthenticated
// to ready. One instance per identity per process start; Run is one-shot.
type Orchestrator struct {
	identity  backend.Identity
	store     credential.Store
	login     LoginFlow
	validator Validator
	apiKey    string
	headless  bool
	now       func() time.Time

	mu          sync.Mutex
	state       State
	reason      FailureReason
	cred        credential.Credential
	transitions []State
}

// OrchestratorOption customizes Orchestrator creation.
type OrchestratorOption func(*Orchestrator)

// NewOrchestrator creates an orchestrator in the Unauthenticated state.
func NewOrchestrator(identity backend.Identity, store credential.Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		identity:    identity,
		store:       store,
		now:         time.Now,
		state:       StateUnauthenticated,
		cred:        credential.None(),
		transitions: []State{StateUnauthenticated},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithLoginFlow sets the interactive login flow.
func WithLoginFlow(flow LoginFlow) OrchestratorOption {
	return func(o *Orchestrator) { o.login = flow }
}

// WithValidator sets the session validator.
func WithValidator(v Validator) OrchestratorOption {
	return func(o *Orchestrator) { o.validator = v }
}

// WithAPIKey supplies a configured API key for the identity's family.
func WithAPIKey(key string) OrchestratorOption {
	return func(o *Orchestrator) { o.apiKey = key }
}

// WithHeadless bypasses interactive onboarding: login fails fast instead
// of waiting for a browser.
func WithHeadless(headless bool) OrchestratorOption {
	return func(o *Orchestrator) { o.headless = headless }
}

// WithNowFunc overrides the clock (testing).
func WithNowFunc(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// State returns the current auth state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reason returns the failure reason, empty unless Failed.
func (o *Orchestrator) Reason() FailureReason {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}

// Credential returns the credential after Run reached Ready.
func (o *Orchestrator) Credential() credential.Credential {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cred
}

// Transitions returns the state history, oldest first.
func (o *Orchestrator) Transitions() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, len(o.transitions))
	copy(out, o.transitions)
	return out
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.transitions = append(o.transitions, s)
	o.mu.Unlock()
	log.WithFields(log.Fields{
		"component": "auth",
		"backend":   string(o.identity),
		"state":     string(s),
	}).Debug("auth state transition")
}

func (o *Orchestrator) fail(reason FailureReason, err error) error {
	o.mu.Lock()
	o.state = StateFailed
	o.reason = reason
	o.transitions = append(o.transitions, StateFailed)
	o.mu.Unlock()
	log.WithFields(log.Fields{
		"component": "auth",
		"backend":   string(o.identity),
		"reason":    string(reason),
	}).Error(booterrors.Remediation(err, string(o.identity)))
	return err
}

func (o *Orchestrator) ready(cred credential.Credential) credential.Credential {
	o.mu.Lock()
	o.state = StateReady
	o.cred = cred
	o.transitions = append(o.transitions, StateReady)
	o.mu.Unlock()
	log.WithFields(log.Fields{
		"component": "auth",
		"backend":   string(o.identity),
	}).Info("backend authenticated")
	return cred
}

// Run drives the state machine to Ready or Failed. The returned credential
// is valid only when the error is nil.
func (o *Orchestrator) Run(ctx context.Context) (credential.Credential, error) {
	if !o.identity.Valid() {
		return credential.None(), o.fail(FailureRejected,
			fmt.Errorf("%w: %q", booterrors.ErrUnknownIdentity, string(o.identity)))
	}

	// Local backends never authenticate remotely. Invariant, not an
	// optimization: a remote call on this path is a defect.
	if o.identity.Local() {
		return o.ready(credential.None()), nil
	}

	stored, err := o.store.Load(ctx, o.identity)
	if err != nil {
		return credential.None(), o.fail(FailureStoreCorrupt, err)
	}

	// API keys skip login; a presence check is all that startup needs.
	if o.apiKey != "" {
		return o.ready(credential.NewAPIKey(o.apiKey)), nil
	}
	if stored.Kind == credential.KindAPIKey && stored.Present() {
		return o.ready(stored), nil
	}

	if stored.Kind == credential.KindSession && stored.Present() {
		if stored.Expired(o.now()) {
			log.WithFields(log.Fields{
				"component": "auth",
				"backend":   string(o.identity),
			}).Info("stored session expired, re-login required")
			return o.interactiveLogin(ctx)
		}

		o.setState(StateSessionPendingValidation)
		switch err := o.validateSession(ctx, stored.SessionToken); {
		case err == nil:
			return o.ready(stored), nil
		case booterrors.Is(err, booterrors.ErrAuthRejected):
			log.WithFields(log.Fields{
				"component": "auth",
				"backend":   string(o.identity),
			}).Warn("stored session rejected, re-login required")
			return o.interactiveLogin(ctx)
		default:
			return credential.None(), o.fail(FailureTransient, err)
		}
	}

	return o.interactiveLogin(ctx)
}

// validateSession issues the remote validation call with a single
// automatic retry for transient failures.
func (o *Orchestrator) validateSession(ctx context.Context, token string) error {
	if o.validator == nil {
		return nil
	}
	err := o.validator.Validate(ctx, token)
	if err == nil || booterrors.Is(err, booterrors.ErrAuthRejected) {
		return err
	}
	log.WithFields(log.Fields{
		"component": "auth",
		"backend":   string(o.identity),
	}).Warnf("session validation failed transiently, retrying once: %v", err)
	if err = o.validator.Validate(ctx, token); err != nil && !booterrors.Is(err, booterrors.ErrAuthRejected) && !booterrors.Is(err, booterrors.ErrAuthTransient) {
		return fmt.Errorf("%w: %v", booterrors.ErrAuthTransient, err)
	}
	return err
}

func (o *Orchestrator) interactiveLogin(ctx context.Context) (credential.Credential, error) {
	o.setState(StateAwaitingInteractiveLogin)

	if o.headless {
		return credential.None(), o.fail(FailureHeadless,
			fmt.Errorf("%w: backend %s", booterrors.ErrHeadless, o.identity))
	}
	if o.login == nil {
		return credential.None(), o.fail(FailureRejected,
			fmt.Errorf("no interactive login flow configured for backend %s", o.identity))
	}

	cred, err := o.login.Login(ctx)
	if err != nil {
		switch {
		case booterrors.Is(err, booterrors.ErrLoginCancelled) || ctx.Err() != nil:
			return credential.None(), o.fail(FailureCancelled,
				fmt.Errorf("%w: backend %s", booterrors.ErrLoginCancelled, o.identity))
		case booterrors.IsTransientNetwork(err):
			return credential.None(), o.fail(FailureTransient,
				fmt.Errorf("%w: %v", booterrors.ErrAuthTransient, err))
		default:
			return credential.None(), o.fail(FailureRejected,
				fmt.Errorf("%w: %v", booterrors.ErrAuthRejected, err))
		}
	}

	// Persist only after a successful exchange; a cancelled flow must not
	// leak a half-completed token to disk.
	if err := o.store.Save(ctx, o.identity, cred); err != nil {
		return credential.None(), o.fail(FailureStoreCorrupt, err)
	}
	return o.ready(cred), nil
}
