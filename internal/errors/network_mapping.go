package errors

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsTransientNetwork reports whether err looks like a network-level failure
// that may succeed on retry, as opposed to a definitive rejection.
func IsTransientNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection refused"):
		return true
	case strings.Contains(msg, "EOF") || strings.Contains(msg, "connection reset"):
		return true
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "name resolution"):
		return true
	}
	return false
}
