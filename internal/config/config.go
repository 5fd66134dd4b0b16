package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/shopfront/orders-service/internal/pricing"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type TelemetryConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
}

// PricingConfig keeps amounts as strings so they survive YAML and env
// round-trips without floating-point mangling; Rates parses them once.
type PricingConfig struct {
	TaxRate               string `mapstructure:"tax_rate"`
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold"`
	FlatShippingFee       string `mapstructure:"flat_shipping_fee"`
}

// Load reads configuration from the given YAML file, if any, with every key
// overridable through ORDERS_-prefixed environment variables
// (e.g. ORDERS_DATABASE_URL, ORDERS_PRICING_TAX_RATE).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("telemetry.service_name", "orders")
	v.SetDefault("telemetry.service_version", "0.1.0")
	// AutomaticEnv only resolves keys viper already knows about, so keys
	// without a meaningful default still need an empty one to be
	// overridable through the environment.
	v.SetDefault("database.url", "")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("pricing.tax_rate", "0.10")
	v.SetDefault("pricing.free_shipping_threshold", "100")
	v.SetDefault("pricing.flat_shipping_fee", "15")

	v.SetEnvPrefix("ORDERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required (ORDERS_DATABASE_URL)")
	}

	return &cfg, nil
}

// Rates parses the pricing section into the calculator's config.
func (p PricingConfig) Rates() (pricing.Config, error) {
	taxRate, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return pricing.Config{}, fmt.Errorf("invalid tax_rate %q: %w", p.TaxRate, err)
	}
	threshold, err := decimal.NewFromString(p.FreeShippingThreshold)
	if err != nil {
		return pricing.Config{}, fmt.Errorf("invalid free_shipping_threshold %q: %w", p.FreeShippingThreshold, err)
	}
	fee, err := decimal.NewFromString(p.FlatShippingFee)
	if err != nil {
		return pricing.Config{}, fmt.Errorf("invalid flat_shipping_fee %q: %w", p.FlatShippingFee, err)
	}
	return pricing.Config{
		TaxRate:               taxRate,
		FreeShippingThreshold: threshold,
		FlatShippingFee:       fee,
	}, nil
}
