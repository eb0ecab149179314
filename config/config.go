package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultBaseURL           = "https://1click.chaindefuser.com"
	DefaultRatesExpiration   = 60 * time.Second
	DefaultSlippageBps       = 100
	DefaultRequestsPerSecond = 2.0
)

// EVMNetwork is the RPC endpoint serving one EVM chain currency
type EVMNetwork struct {
	RPCUrl   string  `mapstructure:"rpc_url"`
	ChainID  int64   `mapstructure:"chain_id"`
	GasPrice *int64  `mapstructure:"gas_price"`
	GasLimit *uint64 `mapstructure:"gas_limit"`
}

// SolanaConfig holds the Solana RPC settings
type SolanaConfig struct {
	RPCUrl     string
	Commitment string
}

// LogConfig holds the logging settings
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config holds the application configuration
type Config struct {
	JWTToken string
	BaseURL  string

	AccountsFile      string
	InstalledApps     []string
	RatesExpiration   time.Duration
	SlippageBps       int
	RequestsPerSecond float64

	Log LogConfig

	// keyed by chain currency id
	EVMNetworks map[string]EVMNetwork
	Solana      SolanaConfig
	FeeReserve  map[string]string
	AbandonSeed map[string]string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".wallet-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("base_url", DefaultBaseURL)
	viper.SetDefault("installed_apps", []string{"Bitcoin", "Ethereum", "Solana"})
	viper.SetDefault("rates_expiration", DefaultRatesExpiration)
	viper.SetDefault("slippage_bps", DefaultSlippageBps)
	viper.SetDefault("requests_per_second", DefaultRequestsPerSecond)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("log_max_size_mb", 10)
	viper.SetDefault("log_max_backups", 3)
	viper.SetDefault("log_max_age_days", 28)
	viper.SetDefault("solana_rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("solana_commitment", "confirmed")

	// Read from environment variables
	viper.SetEnvPrefix("WALLET_SWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		JWTToken:          viper.GetString("jwt_token"),
		BaseURL:           viper.GetString("base_url"),
		AccountsFile:      viper.GetString("accounts_file"),
		InstalledApps:     viper.GetStringSlice("installed_apps"),
		RatesExpiration:   viper.GetDuration("rates_expiration"),
		SlippageBps:       viper.GetInt("slippage_bps"),
		RequestsPerSecond: viper.GetFloat64("requests_per_second"),
		Log: LogConfig{
			Level:      viper.GetString("log_level"),
			Format:     viper.GetString("log_format"),
			File:       viper.GetString("log_file"),
			MaxSizeMB:  viper.GetInt("log_max_size_mb"),
			MaxBackups: viper.GetInt("log_max_backups"),
			MaxAgeDays: viper.GetInt("log_max_age_days"),
		},
		Solana: SolanaConfig{
			RPCUrl:     viper.GetString("solana_rpc_url"),
			Commitment: viper.GetString("solana_commitment"),
		},
		FeeReserve:  viper.GetStringMapString("fee_reserve"),
		AbandonSeed: viper.GetStringMapString("abandon_seed"),
	}

	if err := viper.UnmarshalKey("evm_networks", &cfg.EVMNetworks); err != nil {
		return nil, fmt.Errorf("invalid evm_networks: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RatesExpiration <= 0 {
		return fmt.Errorf("rates_expiration must be positive, got %s", c.RatesExpiration)
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10000 {
		return fmt.Errorf("slippage_bps must be between 0 and 10000, got %d", c.SlippageBps)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond)
	}
	for id, network := range c.EVMNetworks {
		if network.RPCUrl == "" {
			return fmt.Errorf("RPC URL not configured for network %s", id)
		}
	}
	return nil
}

// RequireJWT fails when the 1Click API token is missing
func (c *Config) RequireJWT() error {
	if c.JWTToken == "" {
		return fmt.Errorf("JWT token not found. Please set WALLET_SWAP_JWT_TOKEN environment variable or create a .wallet-swap.yaml config file")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
