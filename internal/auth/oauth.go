package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"modelboot-go/internal/constants"
	"modelboot-go/internal/credential"
	booterrors "modelboot-go/internal/errors"
)

// ProviderPreset bundles everything needed to log in against one identity
// provider: its OAuth endpoints and the URL used to validate a live
// session afterwards.
type ProviderPreset struct {
	Name        string
	Endpoint    oauth2.Endpoint
	Scopes      []string
	ValidateURL string
}

var providerPresets = map[string]ProviderPreset{
	"google": {
		Name:        "google",
		Endpoint:    google.Endpoint,
		Scopes:      []string{"openid", "email"},
		ValidateURL: "https://oauth2.googleapis.com/tokeninfo",
	},
	"github": {
		Name:        "github",
		Endpoint:    github.Endpoint,
		Scopes:      []string{"read:user"},
		ValidateURL: "https://api.github.com/user",
	},
}

// PresetFor looks up a provider preset by name.
func PresetFor(name string) (ProviderPreset, bool) {
	p, ok := providerPresets[name]
	return p, ok
}

// ProviderNames lists the selectable providers.
func ProviderNames() []string {
	return []string{"google", "github"}
}

// LoginManager runs the interactive authorization-code flow with PKCE:
// spin up a loopback callback server, open the provider's consent page in
// the user's browser, then exchange the returned code for a session token.
type LoginManager struct {
	preset       ProviderPreset
	clientID     string
	clientSecret string
	redirectURI  string
	listenAddr   string
	openURL      func(url string) error
	httpClient   *http.Client
	now          func() time.Time
}

// LoginOption customizes LoginManager creation.
type LoginOption func(*LoginManager)

// NewLoginManager creates a login manager for one provider preset.
func NewLoginManager(preset ProviderPreset, clientID, clientSecret string, opts ...LoginOption) *LoginManager {
	m := &LoginManager{
		preset:       preset,
		clientID:     clientID,
		clientSecret: clientSecret,
		listenAddr:   "127.0.0.1:0",
		openURL:      openBrowser,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// WithOpenURL overrides how the consent page is presented (testing, or
// printing the URL for copy-paste environments).
func WithOpenURL(fn func(url string) error) LoginOption {
	return func(m *LoginManager) {
		if fn != nil {
			m.openURL = fn
		}
	}
}

// WithListenAddr pins the callback listener address. The default binds an
// ephemeral loopback port.
func WithListenAddr(addr string) LoginOption {
	return func(m *LoginManager) {
		if addr != "" {
			m.listenAddr = addr
		}
	}
}

// WithRedirectURI pins the registered redirect URI instead of deriving it
// from the callback listener.
func WithRedirectURI(uri string) LoginOption {
	return func(m *LoginManager) { m.redirectURI = uri }
}

// WithLoginHTTPClient overrides the client used for the token exchange
// (testing).
func WithLoginHTTPClient(client *http.Client) LoginOption {
	return func(m *LoginManager) { m.httpClient = client }
}

// WithLoginNowFunc overrides the clock (testing).
func WithLoginNowFunc(now func() time.Time) LoginOption {
	return func(m *LoginManager) {
		if now != nil {
			m.now = now
		}
	}
}

// Login runs the full flow and returns a session credential. Blocks until
// the callback arrives or ctx is cancelled; cancellation wraps
// ErrLoginCancelled.
func (m *LoginManager) Login(ctx context.Context) (credential.Credential, error) {
	verifier, challenge, err := newPKCEPair()
	if err != nil {
		return credential.None(), fmt.Errorf("generate PKCE verifier: %w", err)
	}
	state := uuid.NewString()

	// Listen before building the auth URL so the redirect URI carries a
	// real port.
	ln, err := net.Listen("tcp", m.listenAddr)
	if err != nil {
		return credential.None(), fmt.Errorf("listen for oauth callback: %w", err)
	}
	redirectURI := m.redirectURI
	if redirectURI == "" {
		redirectURI = fmt.Sprintf("http://%s/oauth/callback", ln.Addr().String())
	}

	cfg := &oauth2.Config{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
		Endpoint:     m.preset.Endpoint,
		RedirectURL:  redirectURI,
		Scopes:       m.preset.Scopes,
	}

	srv := newCallbackServer(ln, state)
	defer srv.Shutdown()

	authURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	log.WithFields(log.Fields{
		"component": "auth",
		"provider":  m.preset.Name,
	}).Info("opening browser for interactive login")
	if err := m.openURL(authURL); err != nil {
		return credential.None(), fmt.Errorf("open browser: %w", err)
	}

	var code string
	select {
	case res := <-srv.Result():
		if res.err != nil {
			return credential.None(), res.err
		}
		code = res.code
	case <-ctx.Done():
		return credential.None(), fmt.Errorf("%w: %v", booterrors.ErrLoginCancelled, ctx.Err())
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, constants.TokenExchangeTimeout)
	defer cancel()
	if m.httpClient != nil {
		exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, m.httpClient)
	}
	token, err := cfg.Exchange(exchangeCtx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		if ctx.Err() != nil {
			return credential.None(), fmt.Errorf("%w: %v", booterrors.ErrLoginCancelled, ctx.Err())
		}
		return credential.None(), fmt.Errorf("exchange authorization code: %w", err)
	}

	log.WithFields(log.Fields{
		"component": "auth",
		"provider":  m.preset.Name,
		"expires":   token.Expiry.UTC().Format(time.RFC3339),
	}).Info("interactive login complete")
	return credential.NewSession(token.AccessToken, m.now(), token.Expiry), nil
}

// newPKCEPair returns a fresh code verifier and its S256 challenge.
func newPKCEPair() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
