package config

import (
	"strings"
	"time"

	"modelboot-go/internal/constants"
)

// loadFromEnv loads configuration from environment variables only.
func loadFromEnv() *Settings {
	cfg := &Settings{
		Backend:      strings.ToLower(getenv("ASSISTANT_BACKEND", "")),
		LocalBaseURL: getenv("LOCAL_OPENAI_BASE_URL", ""),
		InferenceURL: getenv("OLLAMA_URL", ""),
		ProbeTimeout: constants.DefaultProbeTimeout,
		Headless:     getenvBool("HEADLESS", false),

		AuthDir:         getenv("AUTH_DIR", "~/.assistantd/auth"),
		CredentialStore: strings.ToLower(getenv("CREDENTIAL_STORE", "file")),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RedisPrefix:     getenv("REDIS_PREFIX", "assistantd:"),

		RemoteAPIKey:  getenv("REMOTE_API_KEY", ""),
		OpenAIKey:     getenv("OPENAI_API_KEY", ""),
		AnthropicKey:  getenv("ANTHROPIC_API_KEY", ""),
		PrivateAPIKey: getenv("PRIVATE_INFERENCE_API_KEY", ""),

		OAuthProvider:     strings.ToLower(getenv("OAUTH_PROVIDER", "google")),
		OAuthClientID:     getenv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getenv("OAUTH_CLIENT_SECRET", ""),
		OAuthRedirectURI:  getenv("OAUTH_REDIRECT_URI", ""),
		SessionEndpoint:   getenv("SESSION_ENDPOINT", ""),

		WizardAddr:        getenv("WIZARD_ADDR", "127.0.0.1:8787"),
		ManagementKey:     getenv("MANAGEMENT_KEY", ""),
		ManagementKeyHash: getenv("MANAGEMENT_KEY_HASH", ""),

		Debug:   getenvBool("DEBUG", false),
		LogFile: getenv("LOG_FILE", ""),
	}

	setIntFromEnv("REDIS_DB", func(n int) { cfg.RedisDB = n })
	setIntFromEnv("PROBE_TIMEOUT_MS", func(n int) {
		if n > 0 {
			cfg.ProbeTimeout = time.Duration(n) * time.Millisecond
		}
	})

	cfg.normalize()
	return cfg
}

// applyEnvOverrides re-applies the environment on top of file-sourced
// settings for keys where the environment must win.
func applyEnvOverrides(cfg *Settings) {
	if v := getenv("ASSISTANT_BACKEND", ""); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := getenv("LOCAL_OPENAI_BASE_URL", ""); v != "" {
		cfg.LocalBaseURL = v
	}
	if v := getenv("OLLAMA_URL", ""); v != "" {
		cfg.InferenceURL = v
	}
	setToggleFromEnv("HEADLESS", func(v bool) { cfg.Headless = v })
	setToggleFromEnv("DEBUG", func(v bool) { cfg.Debug = v })
	setIntFromEnv("PROBE_TIMEOUT_MS", func(n int) {
		if n > 0 {
			cfg.ProbeTimeout = time.Duration(n) * time.Millisecond
		}
	})
}
