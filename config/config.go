/*
Package config loads runtime configuration through viper.

Sources, highest precedence first: environment variables (LEDGER_ prefix),
an optional YAML file, defaults in code. The currency table is reference
data fixed at startup; changing a rate requires a restart, which is
intentional - rates must not drift under live ledgers.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/oddsbook/ledger-engine/ledger"
)

type CurrencyConfig struct {
	ID     int64   `mapstructure:"id"`
	Name   string  `mapstructure:"name"`
	Symbol string  `mapstructure:"symbol"`
	Rate   float64 `mapstructure:"rate"`
}

type Config struct {
	Port   int    `mapstructure:"port"`
	DBPath string `mapstructure:"db_path"`

	FeeSchedulePartner     int64   `mapstructure:"fee_schedule_partner"`
	SharedSecondaryPartner int64   `mapstructure:"shared_secondary_partner"`
	FeeScheduleFraction    float64 `mapstructure:"fee_schedule_fraction"`
	DefaultFraction        float64 `mapstructure:"default_fraction"`
	CharityFraction        float64 `mapstructure:"charity_fraction"`

	Currencies []CurrencyConfig `mapstructure:"currencies"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from file (optional) and environment.
func Load(path string) (Config, error) {
	v := viper.New()

	base := ledger.DefaultRules()
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "ledger.db")
	v.SetDefault("fee_schedule_partner", int64(base.FeeSchedulePartner))
	v.SetDefault("shared_secondary_partner", int64(base.SharedSecondaryPartner))
	v.SetDefault("fee_schedule_fraction", 0.30)
	v.SetDefault("default_fraction", 0.12)
	v.SetDefault("charity_fraction", 0.005)
	v.SetDefault("allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("currencies", []map[string]any{
		{"id": 1, "name": "Euro", "symbol": "€", "rate": 1.0},
	})

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Rules converts the configured constants into engine rules.
func (c Config) Rules() ledger.Rules {
	r := ledger.DefaultRules()
	r.FeeSchedulePartner = ledger.PartnerID(c.FeeSchedulePartner)
	r.SharedSecondaryPartner = ledger.PartnerID(c.SharedSecondaryPartner)
	r.FeeScheduleFraction = decimal.NewFromFloat(c.FeeScheduleFraction)
	r.DefaultFraction = decimal.NewFromFloat(c.DefaultFraction)
	r.CharityFraction = decimal.NewFromFloat(c.CharityFraction)
	return r
}

// CurrencyTable builds the converter's reference data.
func (c Config) CurrencyTable() []ledger.Currency {
	out := make([]ledger.Currency, 0, len(c.Currencies))
	for _, cc := range c.Currencies {
		out = append(out, ledger.Currency{
			ID:     ledger.CurrencyID(cc.ID),
			Name:   cc.Name,
			Symbol: cc.Symbol,
			Rate:   decimal.NewFromFloat(cc.Rate),
		})
	}
	return out
}
