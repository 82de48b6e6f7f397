package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Simplici0/salon-margin/internal/avec"
	"github.com/Simplici0/salon-margin/internal/settings"
)

const (
	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultCostFile = "./dados_custos.csv"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env      string
	Port     string
	DBPath   string
	LogLevel string

	AvecToken     string
	AvecReportURL string
	AvecTimeout   time.Duration

	CostFile   string
	CatalogTTL time.Duration

	// Seed values for the global rates; the database copy wins once seeded.
	DefaultRates settings.Rates
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development"
}

// Load reads a local .env file, then the environment, and returns a
// populated Config.
func Load() Config {
	// Best-effort: production should use real env injection.
	if err := loadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to read .env")
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	rates := settings.Defaults()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("DB_PATH", defaultDBPath)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AVEC_REPORT_URL", avec.DefaultReportURL)
	v.SetDefault("AVEC_TIMEOUT", "30s")
	v.SetDefault("COST_FILE", defaultCostFile)
	v.SetDefault("CATALOG_TTL", "1h")
	v.SetDefault("DEFAULT_COMMISSION_PERCENT", rates.CommissionPercent.String())
	v.SetDefault("DEFAULT_TAX_PERCENT", rates.TaxPercent.String())
	v.SetDefault("DEFAULT_CARD_FEE_PERCENT", rates.CardFeePercent.String())
	v.SetDefault("DEFAULT_FIXED_OVERHEAD", rates.FixedOverhead.String())
	v.SetDefault("CURRENCY", rates.Currency)
	return v
}

func fromViper(v *viper.Viper) Config {
	defaults := settings.Defaults()

	cfg := Config{
		Env:           v.GetString("APP_ENV"),
		Port:          v.GetString("PORT"),
		DBPath:        v.GetString("DB_PATH"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		AvecToken:     v.GetString("AVEC_AUTHORIZATION"),
		AvecReportURL: v.GetString("AVEC_REPORT_URL"),
		AvecTimeout:   v.GetDuration("AVEC_TIMEOUT"),
		CostFile:      v.GetString("COST_FILE"),
		CatalogTTL:    v.GetDuration("CATALOG_TTL"),
		DefaultRates: settings.Rates{
			CommissionPercent: decimalOr(v, "DEFAULT_COMMISSION_PERCENT", defaults.CommissionPercent),
			TaxPercent:        decimalOr(v, "DEFAULT_TAX_PERCENT", defaults.TaxPercent),
			CardFeePercent:    decimalOr(v, "DEFAULT_CARD_FEE_PERCENT", defaults.CardFeePercent),
			FixedOverhead:     decimalOr(v, "DEFAULT_FIXED_OVERHEAD", defaults.FixedOverhead),
			Currency:          v.GetString("CURRENCY"),
		},
	}

	if cfg.AvecToken == "" {
		log.Warn().Msg("AVEC_AUTHORIZATION is not set, the service catalog will be empty")
	}
	if cfg.CatalogTTL <= 0 {
		log.Warn().Str("value", v.GetString("CATALOG_TTL")).Msg("invalid CATALOG_TTL, using 1h")
		cfg.CatalogTTL = time.Hour
	}
	if cfg.AvecTimeout <= 0 {
		cfg.AvecTimeout = 30 * time.Second
	}

	return cfg
}

func decimalOr(v *viper.Viper, key string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		log.Warn().Str("key", key).Str("value", v.GetString(key)).Msg("not a number, using default")
		return fallback
	}
	return d
}
