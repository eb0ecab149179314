package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadIn(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	if yaml != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".wallet-swap.yaml"), []byte(yaml), 0600))
	}
	return Load()
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadIn(t, "")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultRatesExpiration, cfg.RatesExpiration)
	assert.Equal(t, DefaultSlippageBps, cfg.SlippageBps)
	assert.Equal(t, []string{"Bitcoin", "Ethereum", "Solana"}, cfg.InstalledApps)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Error(t, cfg.RequireJWT())
}

func TestLoadFile(t *testing.T) {
	cfg, err := loadIn(t, `
jwt_token: secret
rates_expiration: 30s
slippage_bps: 50
installed_apps: [Bitcoin, Ethereum]
log_level: debug
log_file: /tmp/wallet-swap.log
evm_networks:
  ethereum:
    rpc_url: https://eth.example.org
    chain_id: 1
fee_reserve:
  bitcoin: "20000"
abandon_seed:
  ethereum: "0x0000000000000000000000000000000000000abc"
`)
	require.NoError(t, err)

	assert.NoError(t, cfg.RequireJWT())
	assert.Equal(t, 30*time.Second, cfg.RatesExpiration)
	assert.Equal(t, 50, cfg.SlippageBps)
	assert.Equal(t, []string{"Bitcoin", "Ethereum"}, cfg.InstalledApps)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/wallet-swap.log", cfg.Log.File)
	require.Contains(t, cfg.EVMNetworks, "ethereum")
	assert.Equal(t, int64(1), cfg.EVMNetworks["ethereum"].ChainID)
	assert.Equal(t, "20000", cfg.FeeReserve["bitcoin"])
	assert.Equal(t, "0x0000000000000000000000000000000000000abc", cfg.AbandonSeed["ethereum"])
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("WALLET_SWAP_JWT_TOKEN", "from-env")
	cfg, err := loadIn(t, "jwt_token: from-file\n")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTToken)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := loadIn(t, "slippage_bps: 20000\n")
	assert.Error(t, err)

	_, err = loadIn(t, "rates_expiration: -1s\n")
	assert.Error(t, err)

	_, err = loadIn(t, "evm_networks:\n  ethereum:\n    chain_id: 1\n")
	assert.Error(t, err)
}
