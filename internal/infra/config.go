package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	DBMaxConns    int
	RedisURL      string
	JWTSecret     string
	PublicBaseURL string
	GeoIPDBPath   string
	// SandboxMode runs against in-process storage and enables the sandbox
	// payment provider.
	SandboxMode bool
	LockBackend string

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	CORSAllowedOrigins []string
	// DBStatementTimeout also bounds how long a campaign lock waits.
	DBStatementTimeout time.Duration

	WebhookTimestampTolerance time.Duration
	WebhookRateLimit          int
	WebhookRateWindow         time.Duration
	ContributionRateLimit     int
	ContributionRateWindow    time.Duration

	PlatformFeeBps      int64
	PlatformFeeMinCents int64
	PlatformFeeMaxCents int64
	PaymentRefPrefix    string

	PayFast  PayFastConfig
	Ozow     OzowConfig
	SnapScan SnapScanConfig

	Karri     ChannelConfig
	Stripe    ChannelConfig
	Takealot  ChannelConfig
	GivenGain ChannelConfig

	PayoutChannelTimeout time.Duration
	WorkerPollInterval   time.Duration
	EventBatchSize       int
	EventDeliveryTimeout time.Duration

	Reconciliation ReconciliationConfig
}

// ReconciliationConfig bounds the payment reconciliation pass.
type ReconciliationConfig struct {
	Lookback time.Duration
	MinAge   time.Duration
	LongTail time.Duration
	// Interval is how often the worker runs a pass. Zero disables it.
	Interval time.Duration
}

// PayFastConfig holds merchant credentials for PayFast.
type PayFastConfig struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	Sandbox     bool
	ValidateITN bool
}

// OzowConfig holds API and webhook credentials for Ozow.
type OzowConfig struct {
	ClientID      string
	ClientSecret  string
	SiteCode      string
	WebhookSecret string
	BaseURL       string
	TokenURL      string
	Scope         string
}

// SnapScanConfig holds credentials for SnapScan.
type SnapScanConfig struct {
	SnapCode       string
	WebhookAuthKey string
	APIKey         string
}

// ChannelConfig configures a payout channel.
type ChannelConfig struct {
	Enabled bool
	APIKey  string
	BaseURL string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 10),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		SandboxMode:   getEnvBool("SANDBOX_MODE", false),
		LockBackend:   strings.ToLower(getEnv("LOCK_BACKEND", "postgres")),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		DBStatementTimeout: time.Second * time.Duration(getEnvInt("DB_STATEMENT_TIMEOUT_SECONDS", 30)),

		WebhookTimestampTolerance: time.Minute * time.Duration(getEnvInt("WEBHOOK_TIMESTAMP_TOLERANCE_MINUTES", 30)),
		WebhookRateLimit:          getEnvInt("WEBHOOK_RATE_LIMIT", 120),
		WebhookRateWindow:         time.Second * time.Duration(getEnvInt("WEBHOOK_RATE_WINDOW_SECONDS", 60)),
		ContributionRateLimit:     getEnvInt("CONTRIBUTION_RATE_LIMIT", 10),
		ContributionRateWindow:    time.Second * time.Duration(getEnvInt("CONTRIBUTION_RATE_WINDOW_SECONDS", 3600)),

		PlatformFeeBps:      int64(getEnvInt("PLATFORM_FEE_BPS", 300)),
		PlatformFeeMinCents: int64(getEnvInt("PLATFORM_FEE_MIN_CENTS", 100)),
		PlatformFeeMaxCents: int64(getEnvInt("PLATFORM_FEE_MAX_CENTS", 50000)),
		PaymentRefPrefix:    getEnv("PAYMENT_REF_PREFIX", "CHG"),

		PayFast: PayFastConfig{
			MerchantID:  os.Getenv("PAYFAST_MERCHANT_ID"),
			MerchantKey: os.Getenv("PAYFAST_MERCHANT_KEY"),
			Passphrase:  os.Getenv("PAYFAST_PASSPHRASE"),
			Sandbox:     getEnvBool("PAYFAST_SANDBOX", true),
			ValidateITN: getEnvBool("PAYFAST_VALIDATE_ITN", false),
		},
		Ozow: OzowConfig{
			ClientID:      os.Getenv("OZOW_CLIENT_ID"),
			ClientSecret:  os.Getenv("OZOW_CLIENT_SECRET"),
			SiteCode:      os.Getenv("OZOW_SITE_CODE"),
			WebhookSecret: os.Getenv("OZOW_WEBHOOK_SECRET"),
			BaseURL:       getEnv("OZOW_BASE_URL", "https://one.ozow.com/v1"),
			TokenURL:      getEnv("OZOW_TOKEN_URL", "https://one.ozow.com/v1/token"),
			Scope:         getEnv("OZOW_SCOPE", "payment"),
		},
		SnapScan: SnapScanConfig{
			SnapCode:       os.Getenv("SNAPSCAN_SNAPCODE"),
			WebhookAuthKey: os.Getenv("SNAPSCAN_WEBHOOK_AUTH_KEY"),
			APIKey:         os.Getenv("SNAPSCAN_API_KEY"),
		},

		Karri: ChannelConfig{
			Enabled: getEnvBool("KARRI_AUTOMATION_ENABLED", false),
			APIKey:  os.Getenv("KARRI_API_KEY"),
			BaseURL: getEnv("KARRI_BASE_URL", "https://api.karri.co.za/v1"),
		},
		Stripe: ChannelConfig{
			Enabled: getEnvBool("BANK_TRANSFER_AUTOMATION_ENABLED", false),
			APIKey:  os.Getenv("STRIPE_SECRET_KEY"),
		},
		Takealot: ChannelConfig{
			Enabled: getEnvBool("TAKEALOT_GIFTCARD_AUTOMATION_ENABLED", false),
			APIKey:  os.Getenv("TAKEALOT_GIFTCARD_API_KEY"),
			BaseURL: getEnv("TAKEALOT_GIFTCARD_BASE_URL", "https://api.takealot.com/giftcards/v1"),
		},
		GivenGain: ChannelConfig{
			Enabled: getEnvBool("GIVENGAIN_AUTOMATION_ENABLED", false),
			APIKey:  os.Getenv("GIVENGAIN_API_KEY"),
			BaseURL: getEnv("GIVENGAIN_BASE_URL", "https://api.givengain.com/v1"),
		},

		PayoutChannelTimeout: time.Second * time.Duration(getEnvInt("PAYOUT_CHANNEL_TIMEOUT_SECONDS", 30)),
		WorkerPollInterval:   time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		EventBatchSize:       getEnvInt("PARTNER_EVENT_BATCH_SIZE", 50),
		EventDeliveryTimeout: time.Second * time.Duration(getEnvInt("PARTNER_EVENT_TIMEOUT_SECONDS", 10)),

		Reconciliation: ReconciliationConfig{
			Lookback: time.Hour * time.Duration(getEnvInt("RECONCILIATION_LOOKBACK_HOURS", 24)),
			MinAge:   time.Minute * time.Duration(getEnvInt("RECONCILIATION_MIN_AGE_MINUTES", 10)),
			LongTail: time.Hour * time.Duration(getEnvInt("RECONCILIATION_LONG_TAIL_HOURS", 168)),
			Interval: time.Minute * time.Duration(getEnvInt("RECONCILIATION_INTERVAL_MINUTES", 15)),
		},
	}

	if cfg.DatabaseURL == "" && !cfg.SandboxMode {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.PlatformFeeMinCents > cfg.PlatformFeeMaxCents {
		return nil, fmt.Errorf("PLATFORM_FEE_MIN_CENTS must not exceed PLATFORM_FEE_MAX_CENTS")
	}

	switch cfg.LockBackend {
	case "postgres", "redis", "local":
	default:
		return nil, fmt.Errorf("LOCK_BACKEND must be one of postgres, redis, local")
	}
	if cfg.SandboxMode && cfg.DatabaseURL == "" && cfg.LockBackend == "postgres" {
		cfg.LockBackend = "local"
	}
	if cfg.LockBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the redis lock backend")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
