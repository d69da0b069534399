package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"modelboot-go/internal/auth"
	"modelboot-go/internal/backend"
	"modelboot-go/internal/config"
	"modelboot-go/internal/credential"
	booterrors "modelboot-go/internal/errors"
	"modelboot-go/internal/logging"
	tracing "modelboot-go/internal/monitoring/tracing"
	"modelboot-go/internal/provider"
	"modelboot-go/internal/wizard"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	headless := flag.Bool("headless", false, "Disable interactive onboarding; fail fast when login would be required")
	resolveOnly := flag.Bool("resolve-only", false, "Print the backend resolution decision as JSON and exit")
	runWizard := flag.Bool("wizard", false, "Serve the local setup wizard API after startup")
	flag.Parse()

	path := *configPath
	if env := os.Getenv("CONFIG_FILE"); env != "" && !flagPassed("config") {
		path = env
	}

	cfg := config.LoadWithFile(path)
	if cfg == nil {
		log.Fatal("Failed to load configuration")
	}
	if *debug {
		cfg.Debug = true
	}
	if *headless {
		cfg.Headless = true
	}

	if err := cfg.ExpandPaths(); err != nil {
		log.WithError(err).Fatal("invalid configuration paths")
	}
	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	traceShutdown, err := tracing.Init(context.Background())
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("failed to shutdown tracing")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, path, *resolveOnly, *runWizard))
}

func run(ctx context.Context, cfg *config.Settings, configPath string, resolveOnly, runWizard bool) int {
	ctx, span := tracing.StartSpan(ctx, "startup", "startup")
	defer span.End()

	resolver := backend.NewResolver()
	resolveCtx, resolveSpan := tracing.StartSpan(ctx, "startup", "startup.resolve")
	resolution := resolver.Explain(resolveCtx, cfg.Snapshot())
	resolveSpan.End()
	log.WithFields(log.Fields{
		"backend": string(resolution.Identity),
		"rule":    resolution.Rule,
	}).Info("backend resolved")

	if resolveOnly {
		out, err := json.MarshalIndent(resolution, "", "  ")
		if err != nil {
			log.WithError(err).Error("failed to encode resolution")
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("failed to open credential store")
		return 1
	}

	orch := newOrchestrator(cfg, resolution.Identity, store)
	authCtx, authSpan := tracing.StartSpan(ctx, "startup", "startup.auth")
	cred, err := orch.Run(authCtx)
	authSpan.End()
	if err != nil {
		return exitCodeFor(err)
	}

	builder := newChainBuilder(ctx, cfg, resolution.Identity, store)
	buildCtx, buildSpan := tracing.StartSpan(ctx, "startup", "startup.build")
	chain, err := builder.Build(buildCtx, resolution.Identity, cfg.LocalBaseURL, cred)
	buildSpan.End()
	if err != nil {
		log.WithError(err).Error("failed to build provider chain")
		return 1
	}

	primary := chain.Primary()
	log.WithFields(log.Fields{
		"backend":  string(primary.Identity),
		"base_url": primary.BaseURL,
		"models":   len(primary.Models),
		"degraded": chain.Degraded,
	}).Info("startup complete")
	if chain.Degraded {
		log.Warn(primary.DegradationNote)
	}

	if runWizard {
		return serveWizard(ctx, cfg, configPath, resolver, store, resolution.Identity)
	}
	return 0
}

// newStore selects the credential store backend from configuration.
func newStore(ctx context.Context, cfg *config.Settings) (credential.Store, error) {
	switch cfg.CredentialStore {
	case "", "file":
		return credential.NewFileStore(cfg.AuthDir), nil
	case "redis":
		return credential.NewRedisStore(ctx, credential.RedisStoreConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
}

func newOrchestrator(cfg *config.Settings, identity backend.Identity, store credential.Store) *auth.Orchestrator {
	opts := []auth.OrchestratorOption{
		auth.WithAPIKey(cfg.APIKeyFor(identity)),
		auth.WithHeadless(cfg.Headless),
	}

	preset, presetOK := auth.PresetFor(cfg.OAuthProvider)
	validateURL := cfg.SessionEndpoint
	if validateURL == "" && presetOK {
		validateURL = preset.ValidateURL
	}
	if validateURL != "" {
		opts = append(opts, auth.WithValidator(auth.NewSessionValidator(validateURL)))
	}

	if presetOK && cfg.OAuthClientID != "" {
		opts = append(opts, auth.WithLoginFlow(auth.NewLoginManager(
			preset, cfg.OAuthClientID, cfg.OAuthClientSecret,
			auth.WithRedirectURI(cfg.OAuthRedirectURI),
		)))
	} else if cfg.OAuthProvider != "" && !presetOK {
		log.WithField("provider", cfg.OAuthProvider).Warn("unknown oauth provider; interactive login unavailable")
	}

	return auth.NewOrchestrator(identity, store, opts...)
}

// newChainBuilder registers vendor fallbacks for every backend family with
// a usable credential, so a primary outage degrades instead of failing.
func newChainBuilder(ctx context.Context, cfg *config.Settings, primary backend.Identity, store credential.Store) *provider.Builder {
	opts := []provider.BuilderOption{}
	for _, id := range []backend.Identity{backend.VendorOpenAI, backend.VendorAnthropic, backend.PrivateInference} {
		if id == primary {
			continue
		}
		cred := credential.None()
		if key := cfg.APIKeyFor(id); key != "" {
			cred = credential.NewAPIKey(key)
		} else if stored, err := store.Load(ctx, id); err == nil && stored.Present() {
			cred = stored
		}
		if cred.Present() {
			opts = append(opts, provider.WithFallback(id, "", cred))
		}
	}
	return provider.NewBuilder(opts...)
}

func serveWizard(ctx context.Context, cfg *config.Settings, configPath string, resolver *backend.Resolver, store credential.Store, identity backend.Identity) int {
	opts := []wizard.ServerOption{wizard.WithResolver(resolver)}
	if preset, ok := auth.PresetFor(cfg.OAuthProvider); ok && cfg.OAuthClientID != "" {
		login := auth.NewLoginManager(preset, cfg.OAuthClientID, cfg.OAuthClientSecret,
			auth.WithRedirectURI(cfg.OAuthRedirectURI))
		opts = append(opts, wizard.WithLoginStarter(func(ctx context.Context) error {
			cred, err := login.Login(ctx)
			if err != nil {
				return err
			}
			return store.Save(ctx, identity, cred)
		}))
	}

	srv := wizard.NewServer(cfg, opts...)
	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start wizard server")
		return 1
	}
	defer srv.Shutdown()

	watcher := config.NewWatcher(configPath, cfg, srv.UpdateSettings)
	watcher.Start()
	defer watcher.Stop()

	<-ctx.Done()
	log.Info("shutting down")
	return 0
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

// exitCodeFor maps startup failures to stable exit codes scripts can
// branch on.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case booterrors.Is(err, booterrors.ErrAuthTransient):
		return 2
	case booterrors.Is(err, booterrors.ErrHeadless):
		return 3
	case booterrors.Is(err, booterrors.ErrAuthRejected):
		return 4
	case booterrors.Is(err, booterrors.ErrStoreCorrupt):
		return 5
	case booterrors.Is(err, booterrors.ErrLoginCancelled):
		return 130
	default:
		return 1
	}
}
