package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig           `mapstructure:"server"`
	Database    DatabaseConfig         `mapstructure:"database"`
	Redis       RedisConfig            `mapstructure:"redis"`
	Stripe      StripeConfig           `mapstructure:"stripe"`
	NOWPayments NOWPaymentsConfig      `mapstructure:"nowpayments"`
	Chains      map[string]ChainConfig `mapstructure:"chains"`
	Pricing     PricingConfig          `mapstructure:"pricing"`
	Retention   RetentionConfig        `mapstructure:"retention"`
	N8N         N8NConfig              `mapstructure:"n8n"`
	SMTP        SMTPConfig             `mapstructure:"smtp"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`
	// AdminToken gates the operator endpoints. Empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
}

type NOWPaymentsConfig struct {
	APIKey    string `mapstructure:"api_key"`
	IPNSecret string `mapstructure:"ipn_secret"`
	BaseURL   string `mapstructure:"base_url"`
	// Payout wallet addresses keyed by canonical asset (usdt, usdc, btc, ...).
	// A payment for an asset with no entry here fails hard; there are no
	// fallback or demo addresses, ever.
	WalletAddresses map[string]string `mapstructure:"wallet_addresses"`
}

type ChainConfig struct {
	RPCURL        string  `mapstructure:"rpc_url"`
	Symbol        string  `mapstructure:"symbol"`
	AdminWallet   string  `mapstructure:"admin_wallet"`
	CoinGeckoID   string  `mapstructure:"coingecko_id"`
	CoinPaprikaID string  `mapstructure:"coinpaprika_id"`
	FallbackPrice float64 `mapstructure:"fallback_price"`
}

type PricingConfig struct {
	CreditsPerUSD   int     `mapstructure:"credits_per_usd"`
	MinAmount       float64 `mapstructure:"min_amount"`
	MaxAmount       float64 `mapstructure:"max_amount"`
	CostPerAnalysis int     `mapstructure:"cost_per_analysis"`
}

type RetentionConfig struct {
	FreeDays int `mapstructure:"free_days"`
	PaidDays int `mapstructure:"paid_days"`
	CacheTTL int `mapstructure:"cache_ttl_minutes"`
}

type N8NConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Load reads the YAML config file and applies environment overrides
// (DREDD_DATABASE_PASSWORD, DREDD_STRIPE_SECRET_KEY, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DREDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("stripe.base_url", "https://api.stripe.com")
	v.SetDefault("nowpayments.base_url", "https://api.nowpayments.io")
	v.SetDefault("pricing.credits_per_usd", 10)
	v.SetDefault("pricing.min_amount", 1.00)
	v.SetDefault("pricing.max_amount", 100.00)
	v.SetDefault("pricing.cost_per_analysis", 10)
	v.SetDefault("retention.free_days", 7)
	v.SetDefault("retention.paid_days", 90)
	v.SetDefault("retention.cache_ttl_minutes", 60)
	v.SetDefault("n8n.timeout_seconds", 120)
}

// DSN assembles the MySQL connection string.
func (d DatabaseConfig) DSN() string {
	return d.User + ":" + d.Password + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name +
		"?charset=utf8mb4&parseTime=True&loc=Local"
}
