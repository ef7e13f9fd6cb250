package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/authn"
	httpapi "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/lockout"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/memory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

const pepperSize = 32

// Application encapsulates the gatekeeper service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	hasher *cryptox.Hasher
	tokens *jwtx.HS256

	lockout             *lockout.Machine
	loginService        *service.LoginService
	registrationService *service.RegistrationService
	accountService      *service.AccountService
	adminService        *service.AdminService
	resetService        *service.PasswordResetService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application with every dependency initialised, the
// schema migrated and the admin account seeded.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeeper",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initCrypto(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	if err := SeedAdmin(ctx, cfg, app.db.Accounts(), app.registrationService, app.logger); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gatekeeper starting",
		"port", app.cfg.Port,
		"driver", app.cfg.DatabaseDriver,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig.String())

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests for up to the grace period and then
// closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gatekeeper stopped")
	return nil
}

// Close releases the store without touching the HTTP server. For callers
// that never started Run.
func (app *Application) Close() error { return app.db.Close() }

func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.DatabaseDriver {
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	case DriverMemory:
		app.logger.Warn("using in-memory store, accounts are lost on restart")
		db = memory.New()
	default:
		err = fmt.Errorf("unknown driver %q", app.cfg.DatabaseDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database ready", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initCrypto() error {
	pepper, err := cryptox.LoadOrCreateKey(app.cfg.PepperFile, pepperSize)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher, err := cryptox.NewHasher(pepper)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	app.hasher = hasher

	secret := []byte(app.cfg.TokenSecret)
	if len(secret) == 0 {
		secret, err = cryptox.LoadOrCreateKey(app.cfg.TokenSecretFile, jwtx.MinSecretSize)
		if err != nil {
			return fmt.Errorf("failed to load token secret: %w", err)
		}
	}
	tokens, err := jwtx.NewHS256(secret, app.cfg.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	app.tokens = tokens

	app.logger.Info("token service ready", "fingerprint", cryptox.Fingerprint(string(secret)))
	return nil
}

func (app *Application) initServices() {
	accounts := app.db.Accounts()

	app.lockout = &lockout.Machine{
		Accounts:          accounts,
		MaxFailedAttempts: app.cfg.MaxFailedAttempts,
	}
	app.loginService = &service.LoginService{
		Accounts:     accounts,
		Lockout:      app.lockout,
		Hasher:       app.hasher,
		Tokens:       app.tokens,
		SecondFactor: service.TOTPVerifier{Skew: 1},
		SessionTTL:   app.cfg.SessionTTL,
		RememberTTL:  app.cfg.RememberTTL,
	}
	app.registrationService = &service.RegistrationService{Accounts: accounts, Hasher: app.hasher}
	app.accountService = &service.AccountService{Accounts: accounts, Hasher: app.hasher}
	app.adminService = &service.AdminService{Accounts: accounts, Lockout: app.lockout}
	app.resetService = &service.PasswordResetService{
		Accounts: accounts,
		Notifier: service.LogNotifier{},
	}
}

func (app *Application) initHTTP() {
	pipeline := &authn.Pipeline{
		Tokens:   app.tokens,
		Accounts: app.db.Accounts(),
	}

	router := httpapi.NewRouter(pipeline, BuildVersion, app.db, app.logger)
	if app.cfg.RateLimits != (httpx.RateLimitProfiles{}) {
		router.Limits = app.cfg.RateLimits
	}
	router.SecureCookie = app.cfg.CookieSecure

	router.LoginService = app.loginService
	router.RegistrationService = app.registrationService
	router.AccountService = app.accountService
	router.AdminService = app.adminService
	router.ResetService = app.resetService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
