package provider

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"modelboot-go/internal/backend"
	"modelboot-go/internal/credential"
	booterrors "modelboot-go/internal/errors"
)

// ModelInfo describes one model a backend can serve.
type ModelInfo struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`
}

// Handle is one usable backend in the chain: where to send requests, what
// to authenticate them with, and which models it serves.
type Handle struct {
	Identity        backend.Identity      `json:"identity"`
	BaseURL         string                `json:"base_url"`
	Credential      credential.Credential `json:"credential"`
	Models          []ModelInfo           `json:"models"`
	DegradationNote string                `json:"degradation_note,omitempty"`
}

// Chain is the ordered list of backends the runtime will try, primary
// first. Degraded is set when any entry fell back to its static model
// table.
type Chain struct {
	Entries  []Handle `json:"entries"`
	Degraded bool     `json:"degraded"`
}

// Primary returns the first entry. Valid only on a built chain.
func (c Chain) Primary() Handle {
	return c.Entries[0]
}

const degradationNote = "model discovery unavailable; using static model table"

// Default endpoints per identity, used when no explicit base URL applies.
var defaultBaseURLs = map[backend.Identity]string{
	backend.RemoteManaged:   "https://api.modelboot.dev/v1",
	backend.LocalOllama:     backend.DefaultInferenceURL,
	backend.VendorOpenAI:    "https://api.openai.com/v1",
	backend.VendorAnthropic: "https://api.anthropic.com/v1",
}

// Discoverer lists the models a live endpoint actually serves.
type Discoverer interface {
	Discover(ctx context.Context, identity backend.Identity, baseURL string, cred credential.Credential) ([]ModelInfo, error)
}

type fallback struct {
	identity backend.Identity
	baseURL  string
	cred     credential.Credential
}

// Builder assembles the provider chain for a resolved, authenticated
// backend. Discovery is best-effort: a dead or slow endpoint degrades the
// chain to the static model table instead of failing startup.
type Builder struct {
	discoverer Discoverer
	fallbacks  []fallback
}

// BuilderOption customizes Builder creation.
type BuilderOption func(*Builder)

// NewBuilder creates a chain builder with live model discovery.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{discoverer: NewModelDiscoverer()}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithDiscoverer overrides model discovery (testing).
func WithDiscoverer(d Discoverer) BuilderOption {
	return func(b *Builder) {
		if d != nil {
			b.discoverer = d
		}
	}
}

// WithFallback appends a secondary backend tried when the primary is
// unavailable at request time. Fallbacks lacking a required credential are
// skipped at build time.
func WithFallback(identity backend.Identity, baseURL string, cred credential.Credential) BuilderOption {
	return func(b *Builder) {
		b.fallbacks = append(b.fallbacks, fallback{identity: identity, baseURL: baseURL, cred: cred})
	}
}

// Build assembles the chain for one primary backend. baseURL may be empty
// for identities with a well-known endpoint. The credential must already
// have passed authentication for identities that require one.
func (b *Builder) Build(ctx context.Context, identity backend.Identity, baseURL string, cred credential.Credential) (Chain, error) {
	if !identity.Valid() {
		return Chain{}, fmt.Errorf("%w: %q", booterrors.ErrUnknownIdentity, string(identity))
	}

	primary, degraded := b.entry(ctx, identity, baseURL, cred)
	chain := Chain{Entries: []Handle{primary}, Degraded: degraded}

	for _, fb := range b.fallbacks {
		if fb.identity == identity {
			continue
		}
		if fb.identity.RequiresAuth() && !fb.cred.Present() {
			log.WithFields(log.Fields{
				"component": "provider",
				"backend":   string(fb.identity),
			}).Debug("skipping fallback backend without credential")
			continue
		}
		entry, deg := b.entry(ctx, fb.identity, fb.baseURL, fb.cred)
		chain.Entries = append(chain.Entries, entry)
		chain.Degraded = chain.Degraded || deg
	}

	log.WithFields(log.Fields{
		"component": "provider",
		"primary":   string(identity),
		"entries":   len(chain.Entries),
		"degraded":  chain.Degraded,
	}).Info("provider chain built")
	return chain, nil
}

func (b *Builder) entry(ctx context.Context, identity backend.Identity, baseURL string, cred credential.Credential) (Handle, bool) {
	if baseURL == "" {
		baseURL = defaultBaseURLs[identity]
	}
	h := Handle{Identity: identity, BaseURL: baseURL, Credential: cred}

	models, err := b.discoverer.Discover(ctx, identity, baseURL, cred)
	if err != nil || len(models) == 0 {
		if err != nil {
			log.WithFields(log.Fields{
				"component": "provider",
				"backend":   string(identity),
			}).Warnf("model discovery failed: %v", err)
		}
		h.Models = StaticModels(identity)
		h.DegradationNote = degradationNote
		return h, true
	}
	h.Models = models
	return h, false
}
