package wizard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"modelboot-go/internal/backend"
	"modelboot-go/internal/config"
	"modelboot-go/internal/netutil"
)

func startTestServer(t *testing.T, cfg *config.Settings, opts ...ServerOption) *Server {
	t.Helper()
	if cfg.WizardAddr == "" {
		cfg.WizardAddr = "127.0.0.1:0"
	}
	s := NewServer(cfg, opts...)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

func noProbe(reachable bool) backend.ProbeFunc {
	return func(_ context.Context, endpoints []string, _ time.Duration) []netutil.ProbeResult {
		out := make([]netutil.ProbeResult, len(endpoints))
		for i, ep := range endpoints {
			out[i] = netutil.ProbeResult{Endpoint: ep, Reachable: reachable}
		}
		return out
	}
}

func TestHealthz(t *testing.T) {
	s := startTestServer(t, &config.Settings{})
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestResolvePreview(t *testing.T) {
	resolver := backend.NewResolver(backend.WithProbeFunc(noProbe(false)))
	s := startTestServer(t, &config.Settings{}, WithResolver(resolver))

	tests := []struct {
		name     string
		query    string
		wantID   backend.Identity
		wantRule string
	}{
		{"default remote", "", backend.RemoteManaged, backend.RuleDefault},
		{"explicit override", "?backend=vendor-anthropic", backend.VendorAnthropic, backend.RuleOverride},
		{"local base url", "?local_base_url=http://localhost:9000/v1", backend.LocalOpenAICompatible, backend.RuleLocalBaseURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get("http://" + s.Addr() + "/api/resolve-preview" + tt.query)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var res backend.Resolution
			if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.Identity != tt.wantID || res.Rule != tt.wantRule {
				t.Errorf("resolution = %s via %s, want %s via %s",
					res.Identity, res.Rule, tt.wantID, tt.wantRule)
			}
		})
	}

	t.Run("unknown selector rejected", func(t *testing.T) {
		resp, err := http.Get("http://" + s.Addr() + "/api/resolve-preview?backend=bogus")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestUpdateSettingsChangesPreviewBaseline(t *testing.T) {
	resolver := backend.NewResolver(backend.WithProbeFunc(noProbe(false)))
	s := startTestServer(t, &config.Settings{}, WithResolver(resolver))

	s.UpdateSettings(&config.Settings{LocalBaseURL: "http://localhost:9000/v1"})

	resp, err := http.Get("http://" + s.Addr() + "/api/resolve-preview")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var res backend.Resolution
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Identity != backend.LocalOpenAICompatible {
		t.Errorf("identity = %s, want reloaded local base url to apply", res.Identity)
	}
}

func TestManagementKeyGuard(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("wiz-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	resolver := backend.NewResolver(backend.WithProbeFunc(noProbe(false)))
	s := startTestServer(t, &config.Settings{ManagementKeyHash: string(hash)}, WithResolver(resolver))

	req, _ := http.NewRequest(http.MethodGet, "http://"+s.Addr()+"/api/providers", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", resp.StatusCode)
	}

	req.Header.Set("X-Management-Key", "wiz-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with key: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with key = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Providers []string `json:"providers"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Providers) == 0 {
		t.Error("no providers listed")
	}

	// Health stays open for liveness checks.
	resp, err = http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

func TestAuthStart(t *testing.T) {
	var started atomic.Int32
	done := make(chan struct{})
	s := startTestServer(t, &config.Settings{},
		WithLoginStarter(func(context.Context) error {
			started.Add(1)
			close(done)
			return nil
		}))

	resp, err := http.Post("http://"+s.Addr()+"/api/auth/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("login starter not invoked")
	}
	if started.Load() != 1 {
		t.Errorf("starter invoked %d times", started.Load())
	}
}

func TestAuthStartCancelledOnShutdown(t *testing.T) {
	cancelled := make(chan struct{})
	cfg := &config.Settings{WizardAddr: "127.0.0.1:0"}
	s := NewServer(cfg, WithLoginStarter(func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Post("http://"+s.Addr()+"/api/auth/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	s.Shutdown()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not cancel the in-flight login")
	}
}

func TestAuthStartUnavailable(t *testing.T) {
	s := startTestServer(t, &config.Settings{})
	resp, err := http.Post("http://"+s.Addr()+"/api/auth/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
