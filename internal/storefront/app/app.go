package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edumall/edumall/internal/storefront/basket"
	httpapi "github.com/edumall/edumall/internal/storefront/http"
	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/identitysdk"
	"github.com/edumall/edumall/pkg/localstore"
	"github.com/edumall/edumall/pkg/session"
	"github.com/edumall/edumall/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application hosts one visitor's session, the enrollment dialog and the
// guarded storefront views.
type Application struct {
	cfg    Config
	logger *slog.Logger

	local    *localstore.Store
	session  *session.Store
	wizard   *enroll.Wizard
	cart     *basket.Cart
	wishlist *basket.Wishlist

	unsubscribe   func()
	cancelRestore context.CancelFunc
	restoreDone   chan struct{}

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "storefront",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initLocalStore(); err != nil {
		return nil, err
	}
	app.initSession()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.startRestore()

	app.logger.Info("storefront starting",
		"port", app.cfg.Port,
		"identity_service", app.cfg.APIBaseURL,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			app.release()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down storefront...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.release(); err != nil {
		return err
	}

	app.logger.Info("storefront stopped")
	return nil
}

// startRestore resolves the startup session in the background. Guarded
// views render the loading state until it finishes.
func (app *Application) startRestore() {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancelRestore = cancel
	app.restoreDone = make(chan struct{})

	go func() {
		defer close(app.restoreDone)
		app.session.Restore(ctx)

		if id, ok := app.session.Identity(); ok {
			app.logger.Info("session restored", "user_id", id.ID)
		} else {
			app.logger.Info("no session to restore")
		}
	}()
}

// release stops background work and closes the local store.
func (app *Application) release() error {
	if app.cancelRestore != nil {
		app.cancelRestore()
		<-app.restoreDone
	}

	app.wizard.Close()
	app.unsubscribe()
	app.session.Dispose()

	if err := app.local.Close(); err != nil {
		app.logger.Error("error closing local store", "error", err)
		return err
	}
	return nil
}

// initLocalStore opens the state file and applies migrations.
func (app *Application) initLocalStore() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", app.cfg.StateFile)

	var opts []localstore.Option
	if app.cfg.VaultKey != "" {
		opts = append(opts, localstore.WithVaultKey([]byte(app.cfg.VaultKey)))
	} else {
		app.logger.Warn("EDUMALL_VAULT_KEY not set, tokens are stored unencrypted")
	}

	local, err := localstore.Open(dsn, opts...)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	if err := local.ApplyMigrations(); err != nil {
		_ = local.Close()
		return fmt.Errorf("failed to apply local store migrations: %w", err)
	}
	app.local = local
	return nil
}

func (app *Application) initSession() {
	client := identitysdk.New(app.cfg.APIBaseURL, app.local,
		identitysdk.WithHTTPClient(&http.Client{Timeout: app.cfg.RequestTimeout}),
	)

	app.session = session.New(client, app.local, session.WithLogger(app.logger))

	app.wizard = enroll.New(app.session,
		enroll.WithLogger(app.logger),
		enroll.WithResendCooldown(app.cfg.ResendCooldown),
		enroll.WithCloseDelay(app.cfg.CloseDelay),
		enroll.WithOnClose(func(res enroll.Result) {
			app.logger.Info("enrollment completed", "mode", res.Mode)
		}),
	)

	app.cart = basket.NewCart(app.local)
	app.wishlist = basket.NewWishlist(app.local)
	app.unsubscribe = app.wishlist.ClearOnSignOut(app.session, app.logger)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.session,
		app.wizard,
		app.local,
		app.logger,
	)
	router.Cart = app.cart
	router.Wishlist = app.wishlist
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
