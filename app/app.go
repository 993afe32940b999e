package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"storefront/backend"
	"storefront/cart"
	"storefront/checkout"
	"storefront/config"
	"storefront/delivery"
	"storefront/identity"
	"storefront/session"
	"storefront/store"
)

// App holds the application's dependencies: one session, one cart and one
// checkout over a shared store, plus the HTTP router serving them.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	backend  *backend.Client
	session  *session.Manager
	cart     *cart.Store
	checkout *checkout.Orchestrator
	Router   http.Handler

	closeStore func() error
	observers  sync.WaitGroup
	closeOnce  sync.Once
}

// New wires the application from cfg, restores any persisted session and
// loads the cart.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Timeouts.Request, logger.With("component", "backend"))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	opts := []session.Option{
		session.WithTimeout(cfg.Timeouts.Request),
		session.WithResendLimit(cfg.OTP.ResendInterval, cfg.OTP.ResendBurst),
	}
	if cfg.Identity.Provider == "kratos" {
		kratos := identity.NewKratosAuthenticator(
			cfg.Identity.KratosURL,
			cfg.Identity.KratosTokenizeTemplate,
			&http.Client{Timeout: cfg.Timeouts.Request},
			logger.With("component", "kratos"),
		)
		opts = append(opts, session.WithTokenIssuer(kratos))
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		backend:    client,
		session:    session.New(client, st, logger.With("component", "session"), opts...),
		cart:       cart.New(st, logger.With("component", "cart")),
		closeStore: closeStore,
	}
	a.checkout = checkout.New(a.session, a.cart, client, cfg.Backend.PaymentGatewayURL, logger.With("component", "checkout"))

	// Observers subscribe before anything publishes.
	a.startObservers()

	phase := a.session.Restore(ctx)
	a.cart.Initialize(ctx)

	a.Router = delivery.NewRouter(a)

	logger.Info("storefront ready",
		"phase", phase,
		"cart_items", a.cart.ItemCount(),
		"store", cfg.Store.Driver,
		"identity", cfg.Identity.Provider)
	return a, nil
}

// Start serves the router on cfg.Server.Addr until ctx is cancelled, then
// shuts down gracefully.
func (a *App) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close tears down the event hubs, waits for observers and closes the store.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.checkout.Close()
		a.cart.Close()
		a.session.Teardown()
		a.observers.Wait()
		err = a.closeStore()
	})
	return err
}

func (a *App) Session() *session.Manager {
	return a.session
}

func (a *App) Cart() *cart.Store {
	return a.cart
}

func (a *App) Checkout() *checkout.Orchestrator {
	return a.checkout
}

func (a *App) Config() *config.Config {
	return a.cfg
}

// WelcomeSeen reports whether the first-run banner was dismissed.
func (a *App) WelcomeSeen(ctx context.Context) bool {
	v, err := a.store.Get(ctx, store.KeyWelcomeSeen)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("failed to read welcome flag", "error", err)
		}
		return false
	}
	return v == "true"
}

// MarkWelcomeSeen records that the banner was dismissed.
func (a *App) MarkWelcomeSeen(ctx context.Context) error {
	if err := a.store.Set(ctx, store.KeyWelcomeSeen, "true"); err != nil {
		return fmt.Errorf("failed to save welcome flag: %w", err)
	}
	return nil
}
