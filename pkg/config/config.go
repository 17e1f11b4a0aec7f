package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed here.
	EnvPrefix = "TINYSPROUTS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "TINYSPROUTS_APP_ENV"
)

type Config struct {
	App           AppConfig
	Redis         RedisConfig
	JWT           JWTConfig
	OTP           OTPConfig
	AuthRateLimit AuthRateLimitConfig
	Razorpay      RazorpayConfig
	Catalog       CatalogConfig
	Checkout      CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TINYSPROUTS_APP_ENV" required:"true"`
	Port         string `envconfig:"TINYSPROUTS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TINYSPROUTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TINYSPROUTS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"TINYSPROUTS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TINYSPROUTS_REDIS_ADDR"`
	Password     string        `envconfig:"TINYSPROUTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TINYSPROUTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TINYSPROUTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TINYSPROUTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TINYSPROUTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TINYSPROUTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TINYSPROUTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TINYSPROUTS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TINYSPROUTS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TINYSPROUTS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TINYSPROUTS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type OTPConfig struct {
	CodeTTL          time.Duration `envconfig:"TINYSPROUTS_OTP_CODE_TTL" default:"5m"`
	ArgonMemoryKB    int           `envconfig:"TINYSPROUTS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int           `envconfig:"TINYSPROUTS_ARGON_TIME" default:"3"`
	ArgonParallelism int           `envconfig:"TINYSPROUTS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int           `envconfig:"TINYSPROUTS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int           `envconfig:"TINYSPROUTS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	RequestCodeWindow     time.Duration `envconfig:"TINYSPROUTS_AUTH_RATE_LIMIT_CODE_WINDOW" default:"5m"`
	RequestCodePhoneLimit int           `envconfig:"TINYSPROUTS_AUTH_RATE_LIMIT_CODE_PHONE_LIMIT" default:"3"`
	RequestCodeIPLimit    int           `envconfig:"TINYSPROUTS_AUTH_RATE_LIMIT_CODE_IP_LIMIT" default:"20"`
	VerifyWindow          time.Duration `envconfig:"TINYSPROUTS_AUTH_RATE_LIMIT_VERIFY_WINDOW" default:"1m"`
	VerifyPhoneLimit      int           `envconfig:"TINYSPROUTS_AUTH_RATE_LIMIT_VERIFY_PHONE_LIMIT" default:"5"`
	VerifyIPLimit         int           `envconfig:"TINYSPROUTS_AUTH_RATE_LIMIT_VERIFY_IP_LIMIT" default:"20"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"TINYSPROUTS_RAZORPAY_KEY_ID" required:"true"`
	KeySecret string `envconfig:"TINYSPROUTS_RAZORPAY_KEY_SECRET" required:"true"`
	Env       string `envconfig:"TINYSPROUTS_RAZORPAY_ENV" default:"test"`
}

// Environment returns the normalized Razorpay environment (test/live).
func (r RazorpayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(r.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CatalogConfig struct {
	BaseURL        string        `envconfig:"TINYSPROUTS_CATALOG_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"TINYSPROUTS_CATALOG_REQUEST_TIMEOUT" default:"10s"`
}

type CheckoutConfig struct {
	Currency          string        `envconfig:"TINYSPROUTS_CHECKOUT_CURRENCY" default:"INR"`
	TaxRatePercent    string        `envconfig:"TINYSPROUTS_CHECKOUT_TAX_RATE_PERCENT" default:"18"`
	CODCost           string        `envconfig:"TINYSPROUTS_CHECKOUT_COD_COST" default:"49"`
	OnlineCost        string        `envconfig:"TINYSPROUTS_CHECKOUT_ONLINE_COST" default:"0"`
	ProcessingTTL     time.Duration `envconfig:"TINYSPROUTS_CHECKOUT_PROCESSING_TTL" default:"10m"`
	ConfirmationTTL   time.Duration `envconfig:"TINYSPROUTS_CHECKOUT_CONFIRMATION_TTL" default:"720h"`
	CartSnapshotTTL   time.Duration `envconfig:"TINYSPROUTS_CART_SNAPSHOT_TTL" default:"720h"`
	FreeShippingAbove string        `envconfig:"TINYSPROUTS_CHECKOUT_FREE_SHIPPING_ABOVE" default:""`
}

func (c CheckoutConfig) validate() error {
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("checkout currency is required")
	}
	if c.ProcessingTTL <= 0 {
		return fmt.Errorf("checkout processing ttl must be positive")
	}
	return nil
}
