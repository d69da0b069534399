package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"modelboot-go/internal/backend"
	"modelboot-go/internal/constants"
)

// Settings is the startup configuration snapshot. Built once from
// environment (optionally overlaid by a YAML file) and treated as immutable
// by the pipeline; the wizard may load fresh copies for live preview.
type Settings struct {
	// Backend selection.
	Backend      string        `yaml:"backend"`
	LocalBaseURL string        `yaml:"local_base_url"`
	InferenceURL string        `yaml:"inference_url"`
	ProbeTimeout time.Duration `yaml:"-"`
	Headless     bool          `yaml:"headless"`

	// Credential storage.
	AuthDir         string `yaml:"auth_dir"`
	CredentialStore string `yaml:"credential_store"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisPrefix     string `yaml:"redis_prefix"`

	// API keys, one per backend family. Presence of a key skips
	// interactive login for that family.
	RemoteAPIKey  string `yaml:"remote_api_key"`
	OpenAIKey     string `yaml:"openai_api_key"`
	AnthropicKey  string `yaml:"anthropic_api_key"`
	PrivateAPIKey string `yaml:"private_inference_api_key"`

	// Interactive login.
	OAuthProvider     string `yaml:"oauth_provider"`
	OAuthClientID     string `yaml:"oauth_client_id"`
	OAuthClientSecret string `yaml:"oauth_client_secret"`
	OAuthRedirectURI  string `yaml:"oauth_redirect_uri"`
	SessionEndpoint   string `yaml:"session_endpoint"`

	// Wizard surface.
	WizardAddr        string `yaml:"wizard_addr"`
	ManagementKey     string `yaml:"management_key"`
	ManagementKeyHash string `yaml:"management_key_hash"`

	// Diagnostics.
	Debug   bool   `yaml:"debug"`
	LogFile string `yaml:"log_file"`
}

// Load builds Settings from environment variables only.
func Load() *Settings {
	return loadFromEnv()
}

// LoadWithFile builds Settings from the environment, overlaid by a YAML
// file when one exists at path. A missing file is not an error.
func LoadWithFile(path string) *Settings {
	cfg := loadFromEnv()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Warn("failed to read config file, using environment only")
		}
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to parse config file, using environment only")
		return loadFromEnv()
	}
	// Environment wins over the file for the override keys, matching the
	// historical behavior users script against.
	applyEnvOverrides(cfg)
	cfg.normalize()
	return cfg
}

// Snapshot derives the resolver input from the settings.
func (s *Settings) Snapshot() backend.ResolutionInput {
	var override backend.Identity
	if s.Backend != "" {
		if id, ok := backend.ParseIdentity(s.Backend); ok {
			override = id
		} else {
			log.WithField("backend", s.Backend).Warn("unrecognized backend selector, falling back to auto-detection")
		}
	}
	return backend.ResolutionInput{
		Override:     override,
		LocalBaseURL: s.LocalBaseURL,
		InferenceURL: s.InferenceURL,
		ProbeTimeout: s.ProbeTimeout,
	}
}

// APIKeyFor returns the configured API key for a backend family, empty when
// none is set.
func (s *Settings) APIKeyFor(id backend.Identity) string {
	switch id {
	case backend.RemoteManaged:
		return s.RemoteAPIKey
	case backend.VendorOpenAI:
		return s.OpenAIKey
	case backend.VendorAnthropic:
		return s.AnthropicKey
	case backend.PrivateInference:
		return s.PrivateAPIKey
	}
	return ""
}

// ExpandPaths expands ~ in path-valued settings.
func (s *Settings) ExpandPaths() error {
	expanded, err := expandHome(s.AuthDir)
	if err != nil {
		return fmt.Errorf("expand auth dir: %w", err)
	}
	s.AuthDir = expanded
	if s.LogFile != "" {
		if expanded, err = expandHome(s.LogFile); err != nil {
			return fmt.Errorf("expand log file: %w", err)
		}
		s.LogFile = expanded
	}
	return nil
}

func (s *Settings) normalize() {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	s.CredentialStore = strings.ToLower(strings.TrimSpace(s.CredentialStore))
	s.OAuthProvider = strings.ToLower(strings.TrimSpace(s.OAuthProvider))
	if s.CredentialStore == "" {
		s.CredentialStore = "file"
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = constants.DefaultProbeTimeout
	}
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
