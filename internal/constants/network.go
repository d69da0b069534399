package constants

import (
	"net"
	"net/http"
	"time"
)

// HTTP client settings for the short-lived startup calls (validation,
// token exchange, discovery). Conservative pool sizes: the process makes a
// handful of requests at boot, not sustained traffic.
const (
	DefaultDialTimeout         = 10 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
	DefaultKeepAlive           = 30 * time.Second

	DefaultMaxIdleConns        = 8
	DefaultMaxIdleConnsPerHost = 4
	DefaultIdleConnTimeout     = 90 * time.Second
)

// NewHTTPClient returns an HTTP client with the startup transport settings
// and the given overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultDialTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		},
	}
}
