package errors

import (
	"errors"
	"fmt"
)

// Remediation builds the user-facing message for a startup failure: which
// backend failed and what to do about it. Never includes credential
// contents.
func Remediation(err error, backend string) string {
	switch {
	case errors.Is(err, ErrAuthRejected):
		return fmt.Sprintf("authentication for backend %q was rejected; run the login flow again to re-authenticate", backend)
	case errors.Is(err, ErrAuthTransient):
		return fmt.Sprintf("could not reach the authentication service for backend %q; check network connectivity and retry", backend)
	case errors.Is(err, ErrStoreCorrupt):
		return fmt.Sprintf("the stored credential for backend %q is unreadable; inspect the file referenced above and remove it to re-authenticate", backend)
	case errors.Is(err, ErrHeadless):
		return fmt.Sprintf("backend %q requires interactive login but headless mode is set; provide an API key or unset HEADLESS", backend)
	case errors.Is(err, ErrLoginCancelled):
		return fmt.Sprintf("login for backend %q was cancelled before completion", backend)
	default:
		return fmt.Sprintf("startup for backend %q failed: %v", backend, err)
	}
}
