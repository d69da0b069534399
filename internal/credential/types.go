package credential

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags the active variant of a Credential. Exactly one variant is
// active per backend identity at a time.
type Kind string

const (
	KindNone    Kind = "none"
	KindAPIKey  Kind = "api_key"
	KindSession Kind = "session"
)

// Credential is the tagged union of credential material for one backend
// family. Secret fields never leave the credential store's persistence
// format in cleartext: MarshalJSON and String redact them.
type Credential struct {
	Kind         Kind
	APIKey       string
	SessionToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// None is the absent credential.
func None() Credential {
	return Credential{Kind: KindNone}
}

// NewAPIKey wraps a long-lived API key.
func NewAPIKey(secret string) Credential {
	return Credential{Kind: KindAPIKey, APIKey: secret}
}

// NewSession wraps a session token obtained via interactive login.
func NewSession(token string, issuedAt, expiresAt time.Time) Credential {
	return Credential{
		Kind:         KindSession,
		SessionToken: token,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	}
}

// Present reports whether any credential material is held.
func (c Credential) Present() bool {
	switch c.Kind {
	case KindAPIKey:
		return c.APIKey != ""
	case KindSession:
		return c.SessionToken != ""
	}
	return false
}

// Expired reports whether a session token is past (or within three minutes
// of) its expiry. API keys never expire here.
func (c Credential) Expired(now time.Time) bool {
	if c.Kind != KindSession {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(3 * time.Minute).After(c.ExpiresAt)
}

// String renders the credential with secrets redacted.
func (c Credential) String() string {
	switch c.Kind {
	case KindAPIKey:
		return "api_key:[REDACTED]"
	case KindSession:
		return fmt.Sprintf("session:[REDACTED] expires=%s", c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return "none"
}

// MarshalJSON redacts secret material. The store persists credentials
// through its own record codec, never through this method.
func (c Credential) MarshalJSON() ([]byte, error) {
	out := map[string]any{"kind": string(c.Kind)}
	switch c.Kind {
	case KindAPIKey:
		out["api_key"] = "[REDACTED]"
	case KindSession:
		out["session_token"] = "[REDACTED]"
		out["issued_at"] = c.IssuedAt
		out["expires_at"] = c.ExpiresAt
	}
	return json.Marshal(out)
}

// Equal compares two credentials including secret material.
func (c Credential) Equal(other Credential) bool {
	return c.Kind == other.Kind &&
		c.APIKey == other.APIKey &&
		c.SessionToken == other.SessionToken &&
		c.IssuedAt.Equal(other.IssuedAt) &&
		c.ExpiresAt.Equal(other.ExpiresAt)
}
