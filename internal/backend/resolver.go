package backend

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"modelboot-go/internal/constants"
	"modelboot-go/internal/netutil"
)

// DefaultInferenceURL is probed when no explicit local inference URL is
// configured.
const DefaultInferenceURL = "http://localhost:11434"

// ResolutionInput is the immutable snapshot the resolver decides from.
// Constructed once at startup; hypothetical inputs may be passed by the
// setup wizard for live preview.
type ResolutionInput struct {
	// Override selects a backend verbatim and disables auto-detection.
	Override Identity
	// LocalBaseURL points at a user-supplied OpenAI-compatible server.
	LocalBaseURL string
	// InferenceURL is the local inference endpoint to probe. Empty means
	// DefaultInferenceURL.
	InferenceURL string
	// ProbeTimeout bounds the probe round. Zero means the default budget.
	ProbeTimeout time.Duration
}

// Resolution explains a resolver decision for the setup wizard.
type Resolution struct {
	Identity Identity              `json:"identity"`
	Rule     string                `json:"rule"`
	Probe    []netutil.ProbeResult `json:"probe,omitempty"`
}

// Rule names, stable for callers.
const (
	RuleOverride     = "explicit-override"
	RuleLocalBaseURL = "local-base-url"
	RuleProbe        = "local-probe"
	RuleDefault      = "default-remote"
)

// ProbeFunc probes candidate endpoints concurrently under one shared
// deadline, returning results in input order.
type ProbeFunc func(ctx context.Context, endpoints []string, timeout time.Duration) []netutil.ProbeResult

// ResolverOption customizes Resolver creation.
type ResolverOption func(*Resolver)

// Resolver maps a ResolutionInput to one backend identity. Pure apart from
// the advisory probe; no process-wide state.
type Resolver struct {
	probe ProbeFunc
	// extra probe candidates beyond the inference URL, each mapping to an
	// identity when reachable. Candidate order is priority order.
	candidates []Candidate
}

// Candidate is an additional local endpoint the resolver may probe.
type Candidate struct {
	URL      string
	Identity Identity
}

// NewResolver creates a resolver with the default prober.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{probe: netutil.ProbeAll}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// WithProbeFunc overrides the prober (testing).
func WithProbeFunc(fn ProbeFunc) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.probe = fn
		}
	}
}

// WithCandidates adds extra probe candidates after the inference URL.
func WithCandidates(candidates ...Candidate) ResolverOption {
	return func(r *Resolver) {
		r.candidates = append(r.candidates, candidates...)
	}
}

// Resolve picks one backend identity. Priority, first match wins:
// explicit override, explicit local base URL, reachable local inference
// service, remote default. At most one probe round, O(timeout) wall clock.
func (r *Resolver) Resolve(ctx context.Context, in ResolutionInput) Identity {
	return r.Explain(ctx, in).Identity
}

// Explain resolves and reports which rule fired, for the wizard preview.
func (r *Resolver) Explain(ctx context.Context, in ResolutionInput) Resolution {
	if in.Override != "" {
		// Overrides win even when the selected service is down; failures
		// surface later at the provider layer, never at resolution.
		if in.Override.Valid() {
			return Resolution{Identity: in.Override, Rule: RuleOverride}
		}
		log.WithFields(log.Fields{
			"component": "resolver",
			"override":  string(in.Override),
		}).Warn("ignoring unrecognized backend override")
	}

	if in.LocalBaseURL != "" {
		return Resolution{Identity: LocalOpenAICompatible, Rule: RuleLocalBaseURL}
	}

	inferenceURL := in.InferenceURL
	if inferenceURL == "" {
		inferenceURL = DefaultInferenceURL
	}
	timeout := in.ProbeTimeout
	if timeout <= 0 {
		timeout = constants.DefaultProbeTimeout
	}

	endpoints := []string{inferenceURL}
	identities := []Identity{LocalOllama}
	for _, c := range r.candidates {
		endpoints = append(endpoints, c.URL)
		identities = append(identities, c.Identity)
	}

	results := r.probe(ctx, endpoints, timeout)
	for i, res := range results {
		if res.Reachable {
			log.WithFields(log.Fields{
				"component":  "resolver",
				"endpoint":   res.Endpoint,
				"elapsed_ms": res.Elapsed.Milliseconds(),
			}).Info("local inference service detected")
			return Resolution{Identity: identities[i], Rule: RuleProbe, Probe: results}
		}
	}

	return Resolution{Identity: RemoteManaged, Rule: RuleDefault, Probe: results}
}
