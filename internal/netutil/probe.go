package netutil

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// dialContext is the connection attempt, swappable in tests so deadline
// behavior does not depend on routing.
var dialContext = new(net.Dialer).DialContext

// ProbeResult is the outcome of a single reachability check. Advisory only:
// probing never surfaces errors to callers.
type ProbeResult struct {
	Endpoint  string
	Reachable bool
	Elapsed   time.Duration
}

// Probe makes exactly one bounded connection attempt against endpoint.
// Any failure (refused, timeout, DNS, TLS, bad URL) yields Reachable=false.
// No retries.
func Probe(ctx context.Context, endpoint string, timeout time.Duration) ProbeResult {
	start := time.Now()
	result := ProbeResult{Endpoint: endpoint}

	addr, err := dialAddress(endpoint)
	if err != nil {
		result.Elapsed = time.Since(start)
		log.WithFields(log.Fields{
			"component": "probe",
			"endpoint":  endpoint,
		}).Debugf("probe skipped: %v", err)
		return result
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialContext(dialCtx, "tcp", addr)
	result.Elapsed = time.Since(start)
	if err != nil {
		log.WithFields(log.Fields{
			"component":  "probe",
			"endpoint":   endpoint,
			"elapsed_ms": result.Elapsed.Milliseconds(),
		}).Debugf("probe failed: %v", err)
		return result
	}
	_ = conn.Close()
	result.Reachable = true
	return result
}

// ProbeAll probes every endpoint concurrently under one shared deadline.
// Results are returned in input order so callers can apply their own
// priority. Wall-clock cost is O(timeout), not O(len(endpoints)).
func ProbeAll(ctx context.Context, endpoints []string, timeout time.Duration) []ProbeResult {
	results := make([]ProbeResult, len(endpoints))
	if len(endpoints) == 0 {
		return results
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			results[i] = Probe(probeCtx, endpoint, timeout)
		}(i, endpoint)
	}
	wg.Wait()
	return results
}

// dialAddress extracts host:port from an endpoint URL, defaulting the port
// from the scheme. Bare host:port strings are accepted as-is.
func dialAddress(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		// No scheme; treat the whole string as host[:port].
		if _, _, splitErr := net.SplitHostPort(endpoint); splitErr == nil {
			return endpoint, nil
		}
		return net.JoinHostPort(endpoint, "80"), nil
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}
