package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration structure
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Stripe     StripeConfig     `yaml:"stripe"`
	Circle     CircleConfig     `yaml:"circle"`
	Mercuryo   MercuryoConfig   `yaml:"mercuryo"`
	Transfer   TransferConfig   `yaml:"transfer"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	UserUIBase string           `yaml:"user_ui_base"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
}

// BlockchainConfig holds the per-network table
type BlockchainConfig struct {
	Networks map[string]NetworkConfig `yaml:"networks"`
}

// NetworkConfig one EVM network entry
type NetworkConfig struct {
	ChainID          int64                     `yaml:"chain_id"`
	RPCURLs          []string                  `yaml:"rpc_urls"`
	NumConfirmations int64                     `yaml:"num_confirmations"`
	TxExplorerPrefix string                    `yaml:"tx_explorer_prefix"`
	Currencies       map[string]CurrencyConfig `yaml:"currencies"`
}

// CurrencyConfig one asset on a network; empty ContractAddress means native
type CurrencyConfig struct {
	Decimals        int32  `yaml:"decimals"`
	ContractAddress string `yaml:"contract_address"`
}

// StripeConfig Stripe API configuration
type StripeConfig struct {
	APIKey     string `yaml:"api_key"`
	LiveAPIKey string `yaml:"live_api_key"`
	TestMode   bool   `yaml:"test_mode"`
}

// CircleConfig Circle API configuration
type CircleConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// MercuryoConfig Mercuryo widget configuration
type MercuryoConfig struct {
	Mode     string `yaml:"mode"` // Sandbox or Prod
	WidgetID string `yaml:"widget_id"`
	Secret   string `yaml:"secret"`
}

// Decimal is a yaml-decodable wrapper, yaml.v3 has no text-unmarshal
// fallback for decimal.Decimal.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", value.Value, err)
	}
	d.Decimal = parsed
	return nil
}

// TransferConfig platform-wide transfer limits and fee
type TransferConfig struct {
	MinimumUSD  Decimal `yaml:"minimum_usd"`
	MaximumUSD  Decimal `yaml:"maximum_usd"`
	PlatformFee Decimal `yaml:"platform_fee_usd"`
}

// MonitorConfig chain monitor loop configuration
type MonitorConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Load reads and validates the configuration file
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	for key, network := range cfg.Blockchain.Networks {
		if len(network.RPCURLs) == 0 {
			return nil, fmt.Errorf("network %s has no rpc_urls", key)
		}
		if network.NumConfirmations <= 0 {
			return nil, fmt.Errorf("network %s has no num_confirmations", key)
		}
	}
	if cfg.Monitor.IntervalSeconds <= 0 {
		cfg.Monitor.IntervalSeconds = 30
	}
	if cfg.Transfer.MinimumUSD.IsZero() {
		cfg.Transfer.MinimumUSD = Decimal{decimal.NewFromInt(1)}
	}
	if cfg.Transfer.MaximumUSD.IsZero() {
		cfg.Transfer.MaximumUSD = Decimal{decimal.NewFromInt(10000)}
	}

	return cfg, nil
}
