package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"modelboot-go/internal/constants"
	booterrors "modelboot-go/internal/errors"
)

// SessionValidator checks a stored session token against the identity
// provider's verification endpoint.
type SessionValidator struct {
	endpoint   string
	httpClient *http.Client
}

// ValidatorOption customizes SessionValidator creation.
type ValidatorOption func(*SessionValidator)

// NewSessionValidator creates a validator for the given verification
// endpoint.
func NewSessionValidator(endpoint string, opts ...ValidatorOption) *SessionValidator {
	v := &SessionValidator{
		endpoint:   endpoint,
		httpClient: constants.NewHTTPClient(constants.SessionValidationTimeout),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// WithValidatorHTTPClient overrides the HTTP client (testing).
func WithValidatorHTTPClient(client *http.Client) ValidatorOption {
	return func(v *SessionValidator) {
		if client != nil {
			v.httpClient = client
		}
	}
}

// Validate issues one verification call. Returns nil for a live token, an
// error wrapping ErrAuthRejected for an expired/revoked one, and an error
// wrapping ErrAuthTransient for network-level failures.
func (v *SessionValidator) Validate(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty session token", booterrors.ErrAuthRejected)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return fmt.Errorf("create validation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", booterrors.ErrAuthTransient, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: validation endpoint returned %d", booterrors.ErrAuthRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: validation endpoint returned %d", booterrors.ErrAuthTransient, resp.StatusCode)
	}
}
