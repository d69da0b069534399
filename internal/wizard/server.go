package wizard

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"modelboot-go/internal/auth"
	"modelboot-go/internal/backend"
	"modelboot-go/internal/config"
	"modelboot-go/internal/constants"
)

// LoginStarter kicks off the interactive login flow on the user's behalf.
type LoginStarter func(ctx context.Context) error

// Server is the local setup-wizard surface: a loopback HTTP API the
// first-run UI calls to preview backend resolution against hypothetical
// settings and to trigger interactive login. Never exposed beyond
// localhost.
type Server struct {
	resolver   *backend.Resolver
	startLogin LoginStarter
	srv        *http.Server
	ln         net.Listener
	baseCtx    context.Context
	cancel     context.CancelFunc

	mu  sync.RWMutex
	cfg *config.Settings
}

// ServerOption customizes Server creation.
type ServerOption func(*Server)

// NewServer creates a wizard server bound to cfg.WizardAddr.
func NewServer(cfg *config.Settings, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: backend.NewResolver(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithResolver overrides the resolver used for previews (testing).
func WithResolver(r *backend.Resolver) ServerOption {
	return func(s *Server) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLoginStarter wires the interactive login trigger.
func WithLoginStarter(fn LoginStarter) ServerOption {
	return func(s *Server) { s.startLogin = fn }
}

// UpdateSettings swaps the live settings the preview starts from. Wired
// to the config watcher so file edits show up without a restart.
func (s *Server) UpdateSettings(cfg *config.Settings) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) settings() *config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Start binds the listener and begins serving. Non-blocking; pair with
// Shutdown. ctx scopes background work the server launches, so a process
// interrupt cancels wizard-triggered logins.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	addr := s.settings().WizardAddr
	if addr == "" {
		addr = "127.0.0.1:8787"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.router()}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithFields(log.Fields{"component": "wizard"}).
				Errorf("wizard server stopped: %v", err)
		}
	}()
	log.WithFields(log.Fields{
		"component": "wizard",
		"addr":      ln.Addr().String(),
	}).Info("setup wizard listening")
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server gracefully and cancels any in-flight
// wizard-triggered login.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.WizardShutdownTimeout)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	limiter := rate.NewLimiter(rate.Limit(10), 20)
	router.Use(func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api", s.requireManagementKey)
	api.GET("/resolve-preview", s.handleResolvePreview)
	api.GET("/providers", s.handleProviders)
	api.POST("/auth/start", s.handleAuthStart)
	return router
}

// requireManagementKey guards the API group when a management key is
// configured. Without one the surface stays loopback-open for first-run
// setup.
func (s *Server) requireManagementKey(c *gin.Context) {
	cfg := s.settings()
	if cfg.ManagementKey == "" && cfg.ManagementKeyHash == "" {
		c.Next()
		return
	}
	if !config.CheckManagementKey(cfg, c.GetHeader("X-Management-Key")) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key"})
		return
	}
	c.Next()
}

// handleResolvePreview resolves a hypothetical input built from query
// parameters, without touching persisted settings. Unset parameters fall
// back to the live configuration so the preview starts from reality.
func (s *Server) handleResolvePreview(c *gin.Context) {
	in := s.settings().Snapshot()

	if v, ok := c.GetQuery("backend"); ok {
		in.Override = ""
		if v != "" {
			if id, valid := backend.ParseIdentity(v); valid {
				in.Override = id
			} else {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown backend selector", "backend": v})
				return
			}
		}
	}
	if v, ok := c.GetQuery("local_base_url"); ok {
		in.LocalBaseURL = v
	}
	if v, ok := c.GetQuery("inference_url"); ok {
		in.InferenceURL = v
	}
	if v, ok := c.GetQuery("probe_timeout_ms"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid probe_timeout_ms"})
			return
		}
		in.ProbeTimeout = time.Duration(ms) * time.Millisecond
	}

	c.JSON(http.StatusOK, s.resolver.Explain(c.Request.Context(), in))
}

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": auth.ProviderNames(),
		"selected":  s.settings().OAuthProvider,
	})
}

// handleAuthStart triggers the interactive login flow. The flow opens the
// user's browser out of band; the wizard only reports acceptance.
func (s *Server) handleAuthStart(c *gin.Context) {
	if s.startLogin == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactive login not available"})
		return
	}
	go func() {
		if err := s.startLogin(s.baseCtx); err != nil {
			log.WithFields(log.Fields{"component": "wizard"}).
				Warnf("wizard-triggered login failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "login-started"})
}
