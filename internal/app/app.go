package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"achieveit/internal/auth"
	"achieveit/internal/config"
	"achieveit/internal/dashboard"
	"achieveit/internal/fit"
	"achieveit/internal/handlers"
	"achieveit/internal/identity/local"
	"achieveit/internal/logger"
	repo "achieveit/internal/repository"
	"achieveit/internal/repository/disk"
	"achieveit/internal/repository/inmemory"
	"achieveit/internal/repository/postgres"
	"achieveit/internal/service"
	"achieveit/internal/suggest"
	"achieveit/internal/worker"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	store     repo.Store
	manager   *auth.Manager
	sweeper   *worker.SessionSweeper
	shutdowns []func() // run in reverse order on shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(logger.Options{
		Development: a.config.Logging.Development,
		File:        a.config.Logging.File,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Shutting down logging...")
		logger.Sync()
	})

	store, err := OpenStore(ctx, a.config.Store)
	if err != nil {
		a.shutdown()
		return nil, err
	}
	a.store = store
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Closing document store...")
		store.Close()
	})

	profiles := service.NewProfiles(store)
	provider := local.New(store, local.WithRecentLoginWindow(a.config.Session.RecentLoginWindow))

	broker := a.newBroker()
	var revoker auth.Revoker
	if broker != nil {
		revoker = auth.NewHTTPRevoker(a.config.Google.RevokeURL)
	}

	a.manager = auth.NewManager(provider, profiles, broker, revoker, auth.Options{
		TTL:         a.config.Session.TTL,
		IdleTimeout: a.config.Session.IdleTimeout,
	})
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Ending sessions...", zap.Int("active", a.manager.ActiveSessions()))
		a.manager.Close()
	})

	fitOpts := []fit.Option{}
	if a.config.Google.FitnessEndpoint != "" {
		fitOpts = append(fitOpts, fit.WithEndpoint(a.config.Google.FitnessEndpoint))
	}

	registry := dashboard.NewRegistry(dashboard.Deps{
		Store:    store,
		Profiles: profiles,
		Fit:      fit.New(fitOpts...),
		Suggest:  suggest.New(a.newGenerator(ctx), a.config.Suggest.Timeout),
		Links:    a.manager,
	})

	tokens := auth.NewTokenIssuer(a.sessionSecret(), a.config.Session.TTL)

	authH := handlers.NewAuthHandler(a.manager, tokens, handlers.CookieConfig{
		Name:   a.config.Session.CookieName,
		Secure: a.config.Session.SecureCookie,
		TTL:    a.config.Session.TTL,
	})
	dashH := handlers.NewDashboardHandler(handlers.Registry(registry))
	healthH := handlers.NewHealthHandler(store)

	a.router = handlers.NewRouter(handlers.RouterConfig{
		AllowedOrigins: a.config.Server.AllowedOrigins,
		RateLimit:      a.config.Server.RateLimit,
		CookieName:     a.config.Session.CookieName,
	}, &authH, &dashH, &healthH, tokens, a.manager)

	interval := a.config.Session.SweepInterval
	a.sweeper = worker.NewSessionSweeper(a.manager, &interval)

	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, "achieveit"),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return a, nil
}

// OpenStore connects the configured document store backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (repo.Store, error) {
	switch cfg.Driver {
	case "postgres":
		if err := postgres.Migrate(cfg.URL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		store, err := postgres.New(ctx, cfg.URL, postgres.Options{
			MaxConns:    cfg.MaxConnections,
			MinConns:    cfg.MinConnections,
			IdleTimeout: cfg.IdleTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "disk":
		store, err := disk.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory", "":
		logger.Warn("Repository: using in-memory store, data is lost on restart")
		return inmemory.NewStorage(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// newBroker returns nil when no Google client secrets are available.
func (a *App) newBroker() *auth.Broker {
	oauthCfg, err := auth.GetConfig(a.config.Google.CredentialsFile, a.config.Server.PublicURL)
	if err != nil {
		logger.Warn("Auth: Google sign-in disabled", zap.Error(err))
		return nil
	}
	return auth.NewBroker(auth.NewGoogleExchanger(oauthCfg), a.config.Google.ConsentTimeout)
}

func (a *App) newGenerator(ctx context.Context) suggest.Generator {
	gen, err := suggest.NewGemini(ctx, a.config.Suggest.APIKey, a.config.Suggest.Model, a.config.Suggest.BaseURL)
	if err != nil {
		logger.Warn("Suggest: AI suggestions disabled", zap.Error(err))
		return suggest.Unconfigured{}
	}
	return gen
}

// sessionSecret falls back to a random key, which signs everyone out on
// restart.
func (a *App) sessionSecret() []byte {
	if a.config.Session.Secret != "" {
		return []byte(a.config.Session.Secret)
	}
	logger.Warn("Auth: session.secret is not set, using a random key")
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return secret
}

// Run serves until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go a.sweeper.Start(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	// Open event streams only end with their sessions.
	a.manager.Close()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func (a *App) shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
