package credential

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCredentialRedaction(t *testing.T) {
	cred := NewSession("super-secret-token", time.Now(), time.Now().Add(time.Hour))

	if s := cred.String(); strings.Contains(s, "super-secret-token") {
		t.Errorf("String() leaks token: %s", s)
	}

	data, err := json.Marshal(cred)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "super-secret-token") {
		t.Errorf("MarshalJSON leaks token: %s", data)
	}
	if !strings.Contains(string(data), "[REDACTED]") {
		t.Errorf("MarshalJSON missing redaction marker: %s", data)
	}

	key := NewAPIKey("sk-very-secret")
	if s := key.String(); strings.Contains(s, "sk-very-secret") {
		t.Errorf("String() leaks api key: %s", s)
	}
}

func TestCredentialExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"api key never expires", NewAPIKey("k"), false},
		{"none never expires", None(), false},
		{"fresh session", NewSession("t", now, now.Add(time.Hour)), false},
		{"expired session", NewSession("t", now.Add(-2*time.Hour), now.Add(-time.Hour)), true},
		{"session inside early-expiry skew", NewSession("t", now, now.Add(time.Minute)), true},
		{"session without expiry", NewSession("t", now, time.Time{}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Expired(now); got != tt.want {
				t.Errorf("Expired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialPresent(t *testing.T) {
	if None().Present() {
		t.Error("none credential reported present")
	}
	if !NewAPIKey("k").Present() {
		t.Error("api key reported absent")
	}
	if (Credential{Kind: KindAPIKey}).Present() {
		t.Error("empty api key reported present")
	}
	if !NewSession("t", time.Now(), time.Now()).Present() {
		t.Error("session reported absent")
	}
}
