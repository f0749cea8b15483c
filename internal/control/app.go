// Package control wires the commune service together from configuration.
package control

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vietddude/commune/internal/core/config"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/health"
	"github.com/vietddude/commune/internal/infra/chain"
	"github.com/vietddude/commune/internal/infra/chain/evm"
	"github.com/vietddude/commune/internal/infra/prefs"
	"github.com/vietddude/commune/internal/infra/readmodel"
	redisclient "github.com/vietddude/commune/internal/infra/redis"
	"github.com/vietddude/commune/internal/infra/rpc"
	"github.com/vietddude/commune/internal/infra/rpc/provider"
	"github.com/vietddude/commune/internal/infra/rpc/routing"
	"github.com/vietddude/commune/internal/infra/session"
	"github.com/vietddude/commune/internal/infra/storage"
	"github.com/vietddude/commune/internal/infra/storage/memory"
	"github.com/vietddude/commune/internal/infra/storage/postgres"
	"github.com/vietddude/commune/internal/notify"
	"github.com/vietddude/commune/internal/txcore"
	"github.com/vietddude/commune/internal/txcore/confirm"
	"github.com/vietddude/commune/internal/txcore/encoder"
	"github.com/vietddude/commune/internal/txcore/gate"
	"github.com/vietddude/commune/internal/txcore/reconcile"
	"github.com/vietddude/commune/internal/txcore/submitter"
	"github.com/vietddude/commune/internal/view"
)

// sponsorClientID keys the relay client among the chain clients so it is
// closed and health checked with them.
const sponsorClientID domain.ChainID = 0

// App is the main application struct that owns every component.
type App struct {
	cfg         *config.AppConfig
	clients     map[domain.ChainID]*rpc.Client
	adapters    map[domain.ChainID]chain.Adapter
	session     *session.LocalSession
	coordinator *reconcile.Coordinator
	store       *view.Store
	reader      *readmodel.Reader
	history     storage.ActionRepository
	recent      *notify.Recent
	prefs       *prefs.Store
	monitor     *health.Monitor
	server      *health.Server
	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{
		cfg:      cfg,
		clients:  make(map[domain.ChainID]*rpc.Client),
		adapters: make(map[domain.ChainID]chain.Adapter),
		store:    view.New(),
		recent:   notify.NewRecent(100),
		log:      slog.Default(),
	}

	// 1. RPC clients and chain adapters
	for _, chainCfg := range cfg.AllChains() {
		client := newClient(chainCfg.Name, chainCfg.Providers)
		a.clients[chainCfg.ChainID] = client
		a.adapters[chainCfg.ChainID] = evm.NewEVMAdapter(chainCfg.ChainID, client)
		slog.Info("Chain configured", "chain", chainCfg.Name, "id", uint64(chainCfg.ChainID), "providers", len(chainCfg.Providers))
	}
	required := a.adapters[cfg.Chain.ChainID]

	// 2. Wallet session
	key, err := parseKey(cfg.Session.PrivateKey)
	if err != nil {
		return nil, err
	}
	var relay *session.SponsorRelay
	if cfg.Chain.SponsorURL != "" {
		// A relayed call is not idempotent on the relay side.
		relayClient := newClient("sponsor", []config.ProviderConfig{{Name: "sponsor", URL: cfg.Chain.SponsorURL, Timeout: cfg.Session.SendTimeout}}).
			WithRetry(routing.RetryConfig{MaxAttempts: 1})
		a.clients[sponsorClientID] = relayClient
		relay = session.NewSponsorRelay(relayClient, func() int64 { return time.Now().UnixNano() })
	}
	a.session, err = session.NewLocal(session.Config{
		Key:         key,
		Chains:      a.adapters,
		Initial:     cfg.Session.InitialChain,
		Sponsor:     relay,
		SendTimeout: cfg.Session.SendTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init session: %w", err)
	}
	if key == nil {
		slog.Warn("No private key configured, actions will be refused")
	}

	// 3. Storage
	if err := a.initHistory(ctx); err != nil {
		return nil, err
	}

	// 4. Redis registry and notification fan-out
	var registry reconcile.Registry = reconcile.NewMemoryRegistry()
	notifiers := notify.Multi{notify.NewLog(nil), a.recent}
	if cfg.Redis.URL != "" {
		a.redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, using process-local registry", "error", err)
		} else {
			registry = redisclient.NewRegistry(a.redisClient, cfg.Reconciler.RegistryTTL)
			notifiers = append(notifiers, redisclient.NewPublisher(a.redisClient, a.session.Address()))
			slog.Info("Using Redis registry")
		}
	}

	// 5. Preferences
	a.prefs, err = prefs.Open(ctx, cfg.Preferences.Path)
	if err != nil {
		slog.Warn("Preferences unavailable", "path", cfg.Preferences.Path, "error", err)
	}

	// 6. Transaction lifecycle
	sub := submitter.New(a.session)
	a.reader = readmodel.NewReader(required, common.HexToAddress(cfg.Chain.CommuneContract))
	a.coordinator = reconcile.New(reconcile.Deps{
		Session: a.session,
		Gate:    gate.New(uint64(cfg.Chain.ChainID)),
		Encoder: encoder.New(encoder.Config{
			Commune:           common.HexToAddress(cfg.Chain.CommuneContract),
			Token:             common.HexToAddress(cfg.Chain.TokenContract),
			CollateralManager: common.HexToAddress(cfg.Chain.CollateralManager),
		}),
		Submitter: sub,
		Watcher: confirm.New(required, sub, confirm.Config{
			PollInterval: cfg.Watcher.PollInterval,
			Timeout:      cfg.Watcher.Timeout,
			ExplorerURL:  cfg.Chain.ExplorerURL,
		}),
		Store:     a.store,
		ReadModel: a.reader,
		Notifier:  notifiers,
		Registry:  registry,
		History:   a.history,
	}, reconcile.Config{
		DisplayDelay:  cfg.Reconciler.DisplayDelay,
		RefetchWindow: cfg.Reconciler.RefetchWindow,
		Sponsor:       cfg.Session.Sponsor,
	})

	// 7. Health
	a.monitor = a.newMonitor()
	deps := health.Deps{
		Monitor:       a.monitor,
		Coordinator:   a.coordinator,
		View:          a.store,
		History:       a.history,
		Notifications: a.recent,
		Account:       a.session.Address,
	}
	if a.prefs != nil {
		deps.Prefs = a.prefs
	}
	a.server = health.NewServer(deps, cfg.Server.Port)

	return a, nil
}

func (a *App) initHistory(ctx context.Context) error {
	if a.cfg.Database.URL == "" {
		a.history = memory.NewActionRepo(memory.NewMemoryStorage())
		slog.Info("Using Memory storage")
		return nil
	}
	db, err := postgres.NewDB(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	a.db = db
	a.history = postgres.NewActionRepo(db)
	slog.Info("Using PostgreSQL storage")
	return nil
}

func (a *App) newMonitor() *health.Monitor {
	m := health.NewMonitor(10 * time.Second)
	m.Register("chain", health.ChainCheck(a.adapters[a.cfg.Chain.ChainID], a.cfg.Chain.ChainID))
	for id, client := range a.clients {
		name := fmt.Sprintf("rpc:%d", id)
		if id == sponsorClientID {
			name = "rpc:sponsor"
		}
		m.Register(name, health.ProviderCheck(client.ProviderHealth))
	}
	m.Register("actions", health.StuckActionsCheck(a.coordinator.Active, a.cfg.Reconciler.StuckAfter, time.Now))
	if a.db != nil {
		m.Register("database", health.PingCheck(a.db.Health, health.StatusDegraded))
	}
	if a.redisClient != nil {
		m.Register("redis", health.PingCheck(a.redisClient.Ping, health.StatusDegraded))
	}
	return m
}

// Start loads the initial view and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if a.session.Connected() {
		if err := a.coordinator.Refetch(ctx); err != nil {
			a.log.Warn("Initial read model fetch failed", "error", err)
		}
	}

	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	return nil
}

// Stop cancels in-flight actions and releases every resource.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping commune service...")
	err := a.server.Stop(ctx)
	a.Close()
	return err
}

// Close releases resources without touching the HTTP server. Used by one-shot
// commands.
func (a *App) Close() {
	a.coordinator.Close()
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.prefs != nil {
		_ = a.prefs.Close()
	}
	for _, c := range a.clients {
		_ = c.Close()
	}
}

func (a *App) Coordinator() *reconcile.Coordinator { return a.coordinator }
func (a *App) Store() *view.Store                  { return a.store }
func (a *App) History() storage.ActionRepository   { return a.history }
func (a *App) Session() txcore.SessionContext      { return a.session }
func (a *App) Reader() *readmodel.Reader           { return a.reader }
func (a *App) Monitor() *health.Monitor            { return a.monitor }

// Prefs returns the preferences store, nil when it could not be opened.
func (a *App) Prefs() *prefs.Store { return a.prefs }

func newClient(name string, providers []config.ProviderConfig) *rpc.Client {
	router := routing.NewRouter()
	for _, p := range providers {
		router.AddProvider(name, provider.NewHTTPProvider(p.Name, p.URL, p.Timeout))
	}
	return rpc.NewClient(name, router)
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid session.private_key: %w", err)
	}
	return key, nil
}
