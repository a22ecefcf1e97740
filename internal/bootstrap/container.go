// Package bootstrap wires configuration into the services shared by the api,
// worker and payoutctl binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"dreamboard/internal/adapter/memory"
	"dreamboard/internal/adapter/repo"
	"dreamboard/internal/campaigns"
	"dreamboard/internal/contributions"
	"dreamboard/internal/domain"
	"dreamboard/internal/events"
	"dreamboard/internal/http/handlers"
	"dreamboard/internal/http/httpapi"
	"dreamboard/internal/infra"
	"dreamboard/internal/infra/credentials"
	"dreamboard/internal/infra/geoip"
	"dreamboard/internal/infra/kv"
	"dreamboard/internal/infra/lock"
	"dreamboard/internal/middleware"
	"dreamboard/internal/payments"
	"dreamboard/internal/payouts"
	"dreamboard/internal/providers/giftcard"
	"dreamboard/internal/providers/givengain"
	"dreamboard/internal/providers/httpretry"
	"dreamboard/internal/providers/karri"
	"dreamboard/internal/providers/stripe"
	"dreamboard/internal/settlement"
)

const redisLockTTL = 30 * time.Second

// Container holds every long-lived dependency of a process.
type Container struct {
	Config *infra.Config
	Logger zerolog.Logger

	Pool        *pgxpool.Pool
	Runner      *infra.SQLRunner
	Store       domain.Store
	Memory      *memory.Store
	KV          kv.Store
	Locks       lock.NamedMutex
	Credentials *credentials.Store
	GeoIP       *geoip.Resolver

	Registry      *payments.Registry
	Emitter       *events.Emitter
	Dispatcher    *events.Dispatcher
	Completer     *settlement.Completer
	Aggregator    *payouts.Aggregator
	Executor      *payouts.Executor
	Campaigns     *campaigns.Service
	Contributions *contributions.Service
	Processor     *payments.Processor
	Reconciler    *payments.Reconciler

	service string
	closers []func()
}

// New connects storage and builds the service graph for the named binary.
// Sandbox mode without a DATABASE_URL runs entirely in memory.
func New(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, service string) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, service: service}
	if err := c.connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.wire(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) connect(ctx context.Context) error {
	cfg := c.Config

	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg, c.service)
		if err != nil {
			return err
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		c.Runner = infra.NewSQLRunner(pool, c.Logger)
		c.Store = repo.NewStore(c.Runner)
		c.Credentials = credentials.NewStore(c.Runner)
	} else {
		c.Memory = memory.NewStore()
		c.Store = c.Memory
		c.Logger.Warn().Msg("bootstrap.memory_store")
	}

	if cfg.RedisURL != "" {
		rs, err := kv.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		c.KV = rs
		c.closers = append(c.closers, func() { _ = rs.Close() })
	} else {
		c.KV = kv.NewMemoryStore()
		if !cfg.SandboxMode {
			c.Logger.Warn().Msg("bootstrap.kv_in_memory: rate limits and caches are per instance")
		}
	}

	switch cfg.LockBackend {
	case "redis":
		rs, ok := c.KV.(*kv.RedisStore)
		if !ok {
			return fmt.Errorf("bootstrap: redis lock backend needs REDIS_URL")
		}
		c.Locks = lock.NewRedisMutex(rs.Client(), redisLockTTL, c.Logger)
	case "postgres":
		if c.Pool == nil {
			return fmt.Errorf("bootstrap: postgres lock backend needs DATABASE_URL")
		}
		c.Locks = lock.NewPGAdvisoryMutex(c.Pool, c.Logger)
	default:
		c.Locks = lock.NewLocalMutex()
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("bootstrap.geoip_unavailable")
	} else if geo != nil {
		c.GeoIP = geo
		c.closers = append(c.closers, func() { _ = geo.Close() })
	}
	return nil
}

func (c *Container) wire(ctx context.Context) error {
	cfg := c.Config
	logger := c.Logger

	retry := httpretry.NewClient(httpretry.DefaultOptions(logger))

	c.Registry = payments.NewRegistry(c.paymentAdapters(retry)...)
	c.Emitter = events.NewEmitter(c.Store, logger)
	c.Dispatcher = events.NewDispatcher(c.Store.Repos().Events, events.DispatcherOptions{
		Timeout: cfg.EventDeliveryTimeout,
		Logger:  logger,
	})
	c.Completer = settlement.NewCompleter(c.Store, c.Locks, logger)
	c.Aggregator = payouts.NewAggregator(c.Store, logger)

	channels, err := c.payoutChannels(ctx, retry)
	if err != nil {
		return err
	}
	c.Executor = payouts.NewExecutor(c.Store, channels, c.Emitter, cfg.PayoutChannelTimeout, logger)

	c.Campaigns = campaigns.NewService(c.Store, c.Aggregator, campaigns.NewCache(c.KV, logger), c.Emitter, logger)
	c.Contributions = contributions.NewService(c.Store, c.Registry, contributions.Options{
		Fees: contributions.FeePolicy{
			Bps:      cfg.PlatformFeeBps,
			MinCents: cfg.PlatformFeeMinCents,
			MaxCents: cfg.PlatformFeeMaxCents,
		},
		RefPrefix:     cfg.PaymentRefPrefix,
		PublicBaseURL: cfg.PublicBaseURL,
	}, logger)
	c.Processor = payments.NewProcessor(c.Registry, c.Store, c.Completer, c.Campaigns, c.Emitter,
		payments.TimestampPolicy{Tolerance: cfg.WebhookTimestampTolerance}, logger)
	c.Reconciler = payments.NewReconciler(c.Store, c.Processor, c.transactionListers(), payments.ReconcilerOptions{
		Lookback: cfg.Reconciliation.Lookback,
		MinAge:   cfg.Reconciliation.MinAge,
		LongTail: cfg.Reconciliation.LongTail,
		Logger:   logger,
	})

	logger.Info().
		Interface("payment_providers", c.Registry.Available()).
		Interface("payout_channels", channels.EnabledTypes()).
		Str("lock_backend", cfg.LockBackend).
		Msg("bootstrap.ready")
	return nil
}

func (c *Container) paymentAdapters(client *http.Client) []payments.Adapter {
	cfg := c.Config
	adapters := []payments.Adapter{
		payments.NewPayFast(payments.PayFastOptions{
			MerchantID:    cfg.PayFast.MerchantID,
			MerchantKey:   cfg.PayFast.MerchantKey,
			Passphrase:    cfg.PayFast.Passphrase,
			Sandbox:       cfg.PayFast.Sandbox,
			ValidateITN:   cfg.PayFast.ValidateITN,
			EnforceSource: cfg.IsProduction(),
			HTTPClient:    client,
			Logger:        c.Logger,
		}),
		payments.NewOzow(payments.OzowOptions{
			ClientID:      cfg.Ozow.ClientID,
			ClientSecret:  cfg.Ozow.ClientSecret,
			SiteCode:      cfg.Ozow.SiteCode,
			WebhookSecret: cfg.Ozow.WebhookSecret,
			BaseURL:       cfg.Ozow.BaseURL,
			TokenURL:      cfg.Ozow.TokenURL,
			Scope:         cfg.Ozow.Scope,
			Tokens:        c.KV,
			HTTPClient:    client,
			Logger:        c.Logger,
		}),
		payments.NewSnapScan(payments.SnapScanOptions{
			SnapCode:       cfg.SnapScan.SnapCode,
			WebhookAuthKey: cfg.SnapScan.WebhookAuthKey,
			APIKey:         cfg.SnapScan.APIKey,
			HTTPClient:     client,
			Logger:         c.Logger,
		}),
	}
	if cfg.SandboxMode {
		adapters = append(adapters, payments.NewSandbox(cfg.PublicBaseURL))
	}
	return adapters
}

// transactionListers returns the registered adapters that can list their
// transactions with the configured credentials.
func (c *Container) transactionListers() []payments.TransactionLister {
	var out []payments.TransactionLister
	for _, p := range []domain.PaymentProvider{domain.ProviderOzow, domain.ProviderSnapScan} {
		a, ok := c.Registry.Get(p)
		if !ok {
			continue
		}
		l, ok := a.(interface {
			payments.TransactionLister
			CanList() bool
		})
		if ok && l.CanList() {
			out = append(out, l)
		}
	}
	return out
}

// payoutChannels builds one channel per payout type. A channel without a
// resolvable API key keeps a nil client and stays disabled, so its payouts
// wait for manual confirmation.
func (c *Container) payoutChannels(ctx context.Context, client *http.Client) (payouts.ChannelSet, error) {
	cfg := c.Config
	logger := c.Logger

	resolve := func(provider string, configured string) string {
		key, err := c.Credentials.Resolve(ctx, provider, configured)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("bootstrap.credential_lookup_failed")
		}
		return key
	}

	karriCh := payouts.KarriChannel{Flag: cfg.Karri.Enabled}
	if key := resolve(credentials.ProviderKarri, cfg.Karri.APIKey); key != "" {
		cl, err := karri.NewClient(karri.Options{APIKey: key, BaseURL: cfg.Karri.BaseURL, HTTPClient: client, Logger: &logger, RequestTimeout: cfg.PayoutChannelTimeout})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: karri client: %w", err)
		}
		karriCh.Client = cl
	}

	bankCh := payouts.BankTransferChannel{Flag: cfg.Stripe.Enabled}
	if key := resolve(credentials.ProviderStripe, cfg.Stripe.APIKey); key != "" {
		cl, err := stripe.NewClient(stripe.Options{SecretKey: key, BaseURL: cfg.Stripe.BaseURL, HTTPClient: client, Logger: &logger})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: stripe client: %w", err)
		}
		bankCh.Client = cl
	}

	giftCh := payouts.GiftCardChannel{Flag: cfg.Takealot.Enabled}
	if key := resolve(credentials.ProviderTakealot, cfg.Takealot.APIKey); key != "" {
		cl, err := giftcard.NewClient(giftcard.Options{APIKey: key, BaseURL: cfg.Takealot.BaseURL, HTTPClient: client, Logger: &logger, RequestTimeout: cfg.PayoutChannelTimeout})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gift card client: %w", err)
		}
		giftCh.Client = cl
	}

	charityCh := payouts.CharityChannel{Flag: cfg.GivenGain.Enabled}
	if key := resolve(credentials.ProviderGivenGain, cfg.GivenGain.APIKey); key != "" {
		cl, err := givengain.NewClient(givengain.Options{APIKey: key, BaseURL: cfg.GivenGain.BaseURL, HTTPClient: client, Logger: &logger, RequestTimeout: cfg.PayoutChannelTimeout})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: givengain client: %w", err)
		}
		charityCh.Client = cl
	}

	return payouts.NewChannelSet(karriCh, bankCh, giftCh, charityCh), nil
}

// Handler builds the HTTP API with both rate limiters backed by the shared
// key-value store.
func (c *Container) Handler() http.Handler {
	cfg := c.Config
	app := &handlers.App{
		Logger:        c.Logger,
		Webhooks:      c.Processor,
		Contributions: c.Contributions,
		Campaigns:     c.Campaigns,
		Payouts:       c.Executor,
		ContributionLimiter: middleware.SlidingWindow{
			Store:  c.KV,
			Limit:  cfg.ContributionRateLimit,
			Window: cfg.ContributionRateWindow,
		},
		Ready: c.Ready,
	}
	var lookup middleware.CountryLookup
	if c.GeoIP != nil {
		lookup = c.GeoIP.Lookup
	}
	return httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookLimiter: middleware.FixedWindow{
			Store:  c.KV,
			Limit:  cfg.WebhookRateLimit,
			Window: cfg.WebhookRateWindow,
		},
		CountryLookup: lookup,
		Sandbox:       cfg.SandboxMode,
		Logger:        c.Logger,
	})
}

// Ready pings Postgres and the key-value store.
func (c *Container) Ready(ctx context.Context) error {
	if c.Pool != nil {
		if err := c.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if _, err := c.KV.Get(ctx, "healthz"); err != nil && !errors.Is(err, kv.ErrNil) {
		return fmt.Errorf("kv: %w", err)
	}
	return nil
}

// SeedSandbox inserts an active demo dream board when running in memory and
// returns its id.
func (c *Container) SeedSandbox() (string, bool) {
	if c.Memory == nil || !c.Config.SandboxMode {
		return "", false
	}
	board := c.Memory.PutCampaign(domain.Campaign{
		PartnerID:    "sandbox-partner",
		Slug:         "sandbox-bike",
		ChildName:    "Lerato",
		GiftName:     "Bicycle",
		GoalCents:    250000,
		Status:       domain.CampaignActive,
		PayoutMethod: domain.PayoutGiftCard,
		PayoutEmail:  "parent@example.com",
	})
	c.Logger.Info().Str("dream_board_id", board.ID).Msg("bootstrap.sandbox_board_seeded")
	return board.ID, true
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
