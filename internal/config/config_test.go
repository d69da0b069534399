package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"modelboot-go/internal/backend"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.CredentialStore != "file" {
		t.Errorf("CredentialStore = %q, want file", cfg.CredentialStore)
	}
	if cfg.ProbeTimeout != 100*time.Millisecond {
		t.Errorf("ProbeTimeout = %v, want 100ms", cfg.ProbeTimeout)
	}
	if cfg.Headless {
		t.Error("Headless defaulted to true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ASSISTANT_BACKEND", "Local-Ollama")
	t.Setenv("OLLAMA_URL", "http://localhost:11434")
	t.Setenv("PROBE_TIMEOUT_MS", "250")
	t.Setenv("HEADLESS", "1")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")

	cfg := Load()
	if cfg.Backend != "local-ollama" {
		t.Errorf("Backend = %q, want lowered local-ollama", cfg.Backend)
	}
	if cfg.ProbeTimeout != 250*time.Millisecond {
		t.Errorf("ProbeTimeout = %v, want 250ms", cfg.ProbeTimeout)
	}
	if !cfg.Headless {
		t.Error("Headless not picked up")
	}
	if got := cfg.APIKeyFor(backend.VendorAnthropic); got != "ak-test" {
		t.Errorf("APIKeyFor(vendor-anthropic) = %q", got)
	}
	if got := cfg.APIKeyFor(backend.VendorOpenAI); got != "" {
		t.Errorf("APIKeyFor(vendor-openai) = %q, want empty", got)
	}
}

func TestSnapshot(t *testing.T) {
	cfg := &Settings{Backend: "vendor-openai", LocalBaseURL: "http://localhost:8080", ProbeTimeout: time.Second}
	in := cfg.Snapshot()
	if in.Override != backend.VendorOpenAI {
		t.Errorf("Override = %s, want vendor-openai", in.Override)
	}
	if in.LocalBaseURL != "http://localhost:8080" {
		t.Errorf("LocalBaseURL = %q", in.LocalBaseURL)
	}
	if in.ProbeTimeout != time.Second {
		t.Errorf("ProbeTimeout = %v", in.ProbeTimeout)
	}

	// Unrecognized selector degrades to auto-detection instead of failing
	// startup.
	cfg = &Settings{Backend: "no-such-backend"}
	if in := cfg.Snapshot(); in.Override != "" {
		t.Errorf("Override = %q, want empty for unknown selector", in.Override)
	}
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "backend: local-openai-compatible\nlocal_base_url: http://localhost:9000/v1\nheadless: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadWithFile(path)
	if cfg.Backend != "local-openai-compatible" {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.LocalBaseURL != "http://localhost:9000/v1" {
		t.Errorf("LocalBaseURL = %q", cfg.LocalBaseURL)
	}
	if !cfg.Headless {
		t.Error("Headless not read from file")
	}
}

func TestLoadWithFileEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("backend: local-ollama\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ASSISTANT_BACKEND", "remote-managed")

	cfg := LoadWithFile(path)
	if cfg.Backend != "remote-managed" {
		t.Errorf("Backend = %q, want env override to win", cfg.Backend)
	}
}

func TestLoadWithFileMissing(t *testing.T) {
	cfg := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg == nil {
		t.Fatal("nil settings for missing file")
	}
	if cfg.CredentialStore != "file" {
		t.Errorf("CredentialStore = %q", cfg.CredentialStore)
	}
}

func TestCheckManagementKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	tests := []struct {
		name      string
		cfg       *Settings
		candidate string
		want      bool
	}{
		{"nil config", nil, "x", false},
		{"empty candidate", &Settings{ManagementKey: "k"}, "", false},
		{"plain match", &Settings{ManagementKey: "k"}, "k", true},
		{"plain mismatch", &Settings{ManagementKey: "k"}, "other", false},
		{"hash match", &Settings{ManagementKeyHash: string(hash)}, "s3cret", true},
		{"hash mismatch", &Settings{ManagementKeyHash: string(hash)}, "wrong", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckManagementKey(tt.cfg, tt.candidate); got != tt.want {
				t.Errorf("CheckManagementKey = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("backend: remote-managed\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	changed := make(chan *Settings, 1)
	w := NewWatcher(path, LoadWithFile(path), func(cfg *Settings) {
		select {
		case changed <- cfg:
		default:
		}
	})
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("backend: local-ollama\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Backend != "local-ollama" {
			t.Errorf("reloaded backend = %q", cfg.Backend)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not observe the change")
	}
	if got := w.Current().Backend; got != "local-ollama" {
		t.Errorf("Current().Backend = %q", got)
	}
}
