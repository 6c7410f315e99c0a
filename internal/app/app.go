// Package app assembles the console components from configuration. Both the
// HTTP console and the terminal console are built from it.
package app

import (
	"context"
	"crypto/rand"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/auth"
	"github.com/jrsteele09/quiz-admin/backend"
	"github.com/jrsteele09/quiz-admin/cooldown"
	"github.com/jrsteele09/quiz-admin/dispatch"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	"github.com/jrsteele09/quiz-admin/internal/config"
	"github.com/jrsteele09/quiz-admin/internal/kvstore"
	"github.com/jrsteele09/quiz-admin/internal/obs"
	"github.com/jrsteele09/quiz-admin/payments"
	"github.com/jrsteele09/quiz-admin/sessions"
	"github.com/jrsteele09/quiz-admin/sessions/kvrepo"
)

const (
	keyNamespace  = "keys"
	signingKeyKey = "session"
	signingKeyLen = 32
)

// Backend is everything the console needs from the external backend.
type Backend interface {
	dispatch.Trigger
	cooldown.Source
	accounts.Backend
	payments.Backend
}

var _ Backend = (*backend.Client)(nil)

type App struct {
	Store      *kvstore.Store
	Sessions   *kvrepo.Repo
	Tokens     *sessions.TokenSigner
	Guard      *auth.SessionGuard
	Registry   *cooldown.Registry
	Accounts   *accounts.Machine
	Payments   *payments.Ledger
	Dispatcher *dispatch.Dispatcher
	Metrics    *obs.Metrics

	ownsStore bool
}

type buildOptions struct {
	backend    Backend
	clock      clock.Clock
	registerer prometheus.Registerer
	store      *kvstore.Store
}

type Option func(*buildOptions)

// WithBackend replaces the HTTP backend client (tests use the fake backend).
func WithBackend(b Backend) Option {
	return func(o *buildOptions) {
		o.backend = b
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *buildOptions) {
		o.clock = c
	}
}

// WithRegisterer registers the console metrics. Without it metrics are
// collected but never exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) {
		o.registerer = reg
	}
}

// WithStore uses an already open store instead of opening STATE_DB.
func WithStore(s *kvstore.Store) Option {
	return func(o *buildOptions) {
		o.store = s
	}
}

// New builds the component graph. The cached user list is restored but nothing
// is fetched from the backend yet.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger, options ...Option) (*App, error) {
	o := buildOptions{clock: clock.System{}}
	for _, option := range options {
		option(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = kvstore.Open(ctx, cfg.GetStateDBPath(), kvstore.WithLogger(logger))
		if err != nil {
			return nil, errors.Wrap(err, "[app.New]")
		}
	}

	a, err := build(ctx, cfg, logger, store, o)
	if err != nil {
		if o.store == nil {
			_ = store.Close()
		}
		return nil, err
	}
	a.ownsStore = o.store == nil
	return a, nil
}

func build(ctx context.Context, cfg config.Config, logger zerolog.Logger, store *kvstore.Store, o buildOptions) (*App, error) {
	be := o.backend
	if be == nil {
		be = backend.New(cfg.GetBackendBaseURL(), backend.NewHTTPClient(ctx, cfg))
	}

	hash, err := cfg.GetOperatorPasswordHash()
	if err != nil {
		return nil, errors.Wrap(err, "[app.New]")
	}
	key, err := signingKey(ctx, cfg, store)
	if err != nil {
		return nil, err
	}

	metrics := obs.NewMetrics(o.registerer)
	sessionRepo := kvrepo.New(store)

	guard, err := auth.NewSessionGuard(sessionRepo, cfg.GetOperatorEmail(), hash,
		auth.WithClock(o.clock),
		auth.WithTTL(cfg.GetSessionTTL()),
		auth.WithLogger(logger.With().Str("component", "auth").Logger()),
		auth.WithMetrics(metrics),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New]")
	}

	registry := cooldown.NewRegistry(be,
		cooldown.WithClock(o.clock),
		cooldown.WithWindow(cfg.GetCooldownWindow()),
		cooldown.WithLogger(logger.With().Str("component", "cooldown").Logger()),
		cooldown.WithMetrics(metrics),
	)

	machine := accounts.NewMachine(be,
		accounts.WithClock(o.clock),
		accounts.WithCache(accounts.NewKVCache(store)),
		accounts.WithPauseGrace(cfg.GetPauseGrace()),
		accounts.WithLogger(logger.With().Str("component", "accounts").Logger()),
	)
	if err := machine.LoadCached(ctx); err != nil {
		logger.Warn().Err(err).Msg("user list cache unreadable, starting empty")
	}

	ledger := payments.NewLedger(be, payments.WithLogger(logger.With().Str("component", "payments").Logger()))

	dispatcher, err := dispatch.New(be, registry,
		dispatch.WithClock(o.clock),
		dispatch.WithReconcileDelay(cfg.GetReconcileDelay()),
		dispatch.WithAccounts(machine),
		dispatch.WithPayments(ledger),
		dispatch.WithMetrics(metrics),
		dispatch.WithLogger(logger.With().Str("component", "dispatch").Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New]")
	}

	return &App{
		Store:      store,
		Sessions:   sessionRepo,
		Tokens:     sessions.NewTokenSigner(key),
		Guard:      guard,
		Registry:   registry,
		Accounts:   machine,
		Payments:   ledger,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	}, nil
}

// signingKey prefers SESSION_SIGNING_KEY. Otherwise a random key is generated
// once and kept in the store, so tokens stay valid across restarts.
func signingKey(ctx context.Context, cfg config.ConsoleConfig, store *kvstore.Store) ([]byte, error) {
	if key := cfg.GetSessionSigningKey(); len(key) > 0 {
		return key, nil
	}

	key, err := store.Get(ctx, keyNamespace, signingKeyKey)
	if err == nil && len(key) == signingKeyLen {
		return key, nil
	}
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return nil, errors.Wrap(err, "[app.signingKey] load")
	}

	key = make([]byte, signingKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "[app.signingKey] generate")
	}
	if err := store.Put(ctx, keyNamespace, signingKeyKey, key); err != nil {
		return nil, errors.Wrap(err, "[app.signingKey] store")
	}
	return key, nil
}

// Close stops pending reconciles and closes the store unless it was supplied
// with WithStore.
func (a *App) Close() error {
	_ = a.Dispatcher.Close()
	if !a.ownsStore {
		return nil
	}
	return a.Store.Close()
}
