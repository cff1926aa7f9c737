package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dgellow/login-front/internal/auth"
	"github.com/dgellow/login-front/internal/backend"
	"github.com/dgellow/login-front/internal/browsing"
	"github.com/dgellow/login-front/internal/config"
	"github.com/dgellow/login-front/internal/idp"
	"github.com/dgellow/login-front/internal/log"
	"github.com/dgellow/login-front/internal/server"
	"github.com/dgellow/login-front/internal/storage"
	"github.com/redis/go-redis/v9"
)

// ErrNotLoopback is returned by Login when the redirect URI cannot be
// served from this machine.
var ErrNotLoopback = errors.New("redirectUri is not a loopback address")

// Options customise the host side of a LoginFront.
type Options struct {
	// Notifier also receives every login event.
	Notifier auth.Notifier

	// OpenBrowser opens the authorization URL. Defaults to the system browser.
	OpenBrowser func(url string) error
}

// LoginFront is the terminal host for the login controller: it owns the
// store, the auth context and the loopback server that receives the
// provider redirect.
type LoginFront struct {
	config   config.Config
	store    storage.Store
	cleanup  *storage.CleanupManager
	auth     *auth.Context
	page     *server.Page
	mailbox  *browsing.Mailbox
	outcomes chan error
}

// NewLoginFront creates a login front with all dependencies built
func NewLoginFront(ctx context.Context, cfg config.Config, opts Options) (*LoginFront, error) {
	log.LogInfoWithFields("loginfront", "Building login front", map[string]any{
		"provider": cfg.Provider.Kind,
		"storage":  cfg.Storage.Kind,
	})

	store, err := setupStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	lf, err := newLoginFront(ctx, cfg, store, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return lf, nil
}

func newLoginFront(ctx context.Context, cfg config.Config, store storage.Store, opts Options) (*LoginFront, error) {
	provider, err := idp.NewProvider(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to setup provider: %w", err)
	}

	page, err := server.NewPage(cfg.Provider.RedirectURI, opts.OpenBrowser)
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}))

	lf := &LoginFront{
		config:   cfg,
		store:    store,
		cleanup:  storage.NewCleanupManager(store, cfg.Storage.CleanupInterval),
		page:     page,
		mailbox:  browsing.NewMailbox(browsing.Origin(page.Base()), 4),
		outcomes: make(chan error, 4),
	}

	lf.auth, err = auth.New(ctx, auth.Config{
		PollInterval:   cfg.Login.PollInterval,
		PollTimeout:    cfg.Login.PollTimeout,
		PollGrace:      cfg.Login.PollGrace,
		RestartDelay:   cfg.Login.RestartDelay,
		AttemptTTL:     cfg.Login.AttemptTTL,
		FullNavigation: true,
		AllowedOrigins: cfg.Login.AllowedOrigins,
		DeviceHeader:   cfg.Backend.DeviceHeader,
	}, auth.Deps{
		Store:    store,
		Provider: provider,
		Backend:  client,
		Page:     page,
		Notifier: lf.notifier(opts.Notifier),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup login controller: %w", err)
	}
	if lf.cleanup != nil {
		lf.cleanup.Start(context.Background())
	}
	return lf, nil
}

// notifier forwards events to the host and reports terminal ones to Login.
func (lf *LoginFront) notifier(host auth.Notifier) auth.Notifier {
	if host == nil {
		host = auth.NotifierFuncs{}
	}
	report := func(err error) {
		select {
		case lf.outcomes <- err:
		default:
		}
	}
	return auth.NotifierFuncs{
		OnStatus: host.LoginStatusChanged,
		OnSuccess: func() {
			host.LoginSucceeded()
			report(nil)
		},
		OnError: func(reason string) {
			host.LoginError(reason)
			report(fmt.Errorf("login failed: %s", reason))
		},
		OnAccountID: host.AccountResolved,
	}
}

// Auth exposes the login controller.
func (lf *LoginFront) Auth() *auth.Context {
	return lf.auth
}

// Login runs one interactive login: it serves the redirect URI on the
// loopback interface, opens the browser and waits for the outcome.
func (lf *LoginFront) Login(ctx context.Context, force bool) error {
	redirect, err := url.Parse(lf.config.Provider.RedirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirectUri: %w", err)
	}
	if !isLoopbackHost(redirect.Hostname()) {
		return fmt.Errorf("%w: %s", ErrNotLoopback, redirect.Host)
	}

	// Drop outcomes left over from an earlier call.
	for len(lf.outcomes) > 0 {
		<-lf.outcomes
	}

	router := server.NewRouter(server.RouterConfig{
		CallbackPath: redirect.Path,
		Callback:     server.NewCallbackHandler(lf.auth, lf.page),
		Relay:        server.NewRelayHandler(lf.mailbox),
		RelayOrigins: lf.config.Login.AllowedOrigins,
	})
	httpServer := server.NewHTTPServer(router, redirect.Host)
	ln, err := httpServer.Listen()
	if err != nil {
		return fmt.Errorf("listening on %s: %w", redirect.Host, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, lf.config.Login.PollTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		_ = lf.auth.Serve(runCtx, lf.mailbox)
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			log.LogErrorWithFields("loginfront", "HTTP server shutdown error", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	if err := lf.auth.StartLogin(runCtx, force); err != nil {
		return err
	}

	select {
	case err := <-lf.outcomes:
		return err
	case err := <-errChan:
		return err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("login timed out after %s", lf.config.Login.PollTimeout)
		}
		return runCtx.Err()
	}
}

// Status validates the stored session against the backend.
func (lf *LoginFront) Status(ctx context.Context) (bool, string, error) {
	ok, err := lf.auth.Session().Check(ctx)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, "", nil
	}
	return true, lf.auth.Session().AccountID(ctx), nil
}

// Logout clears the session.
func (lf *LoginFront) Logout(ctx context.Context) error {
	return lf.auth.Logout(ctx)
}

// Close stops background work and releases the store.
func (lf *LoginFront) Close() error {
	lf.auth.Close()
	lf.mailbox.Close()
	if lf.cleanup != nil {
		lf.cleanup.Stop()
	}
	return lf.store.Close()
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// setupStorage creates the store selected by configuration
func setupStorage(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Kind {
	case config.StorageMemory:
		log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
		return storage.NewMemoryStorage(), nil

	case config.StorageSQLite:
		log.LogInfoWithFields("storage", "Using SQLite storage", map[string]any{
			"path": cfg.Path,
		})
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
		return storage.NewSQLiteStore(ctx, cfg.Path)

	case config.StorageRedis:
		log.LogInfoWithFields("storage", "Using Redis storage", map[string]any{
			"addr":   cfg.RedisAddr,
			"db":     cfg.RedisDB,
			"prefix": cfg.Prefix,
		})
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: string(cfg.RedisPassword),
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return storage.NewRedisStore(client, cfg.Prefix), nil

	case config.StorageFirestore:
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.GCPProject,
			"database":   cfg.FirestoreDatabase,
			"collection": cfg.FirestoreCollection,
		})
		return storage.NewFirestoreStore(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection)

	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}
