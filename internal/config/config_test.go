package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: testnet\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, "https://fullnode.testnet.aptoslabs.com/v1", cfg.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.GetTimeout())
	assert.Equal(t, 4, cfg.BatchConcurrency)
	assert.Equal(t, uint64(2000), cfg.Gas.MaxGasAmount)
	assert.Equal(t, uint64(100), cfg.Gas.GasUnitPrice)
	assert.Equal(t, uint64(30), cfg.Gas.ExpirationSecs)
	assert.Equal(t, 500*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, 30*time.Second, cfg.GetConfirmTimeout())
	assert.Equal(t, 1000, cfg.Events.Capacity)
	assert.Equal(t, 100, cfg.Events.BatchSize)
	assert.InDelta(t, 1.1, cfg.Gas.PriceMultiplier, 1e-9)
	assert.Equal(t, "127.0.0.1:8090", cfg.Relay.ListenAddr)
	assert.Equal(t, []string{"*"}, cfg.Relay.CORSOrigins)
	assert.Equal(t, 20, cfg.Relay.Burst)
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolkit.toml")
	content := `
network = "devnet"
batchConcurrency = 8
defaultSlippage = 0.02

[listenerPollInterval]
Liquidswap = "1s"

[gas]
gasUnitPrice = 150
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "devnet", cfg.Network)
	assert.Equal(t, 8, cfg.BatchConcurrency)
	assert.InDelta(t, 0.02, cfg.DefaultSlippage, 1e-9)
	assert.Equal(t, uint64(150), cfg.Gas.GasUnitPrice)
	assert.Equal(t, time.Second, cfg.GetListenerPollInterval("Liquidswap", 2*time.Second))
	assert.Equal(t, 2*time.Second, cfg.GetListenerPollInterval("Thala", 2*time.Second))
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"unknown network":  "network: localnet\n",
		"bad slippage":     "defaultSlippage: 1.5\n",
		"bad concurrency":  "batchConcurrency: -2\n",
		"bad poll":         "listenerPollInterval:\n  Thala: 10s\n",
		"bad timeout":      "timeout: soon\n",
		"bad wallet":       "wallet:\n  type: ledger\n",
		"keystore missing": "wallet:\n  type: keystore\n  key: main\n",
		"half tls":         "relay:\n  tlsCertFile: cert.pem\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content), ".yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, "https://fullnode.mainnet.aptoslabs.com/v1", cfg.Endpoint)
	assert.Equal(t, "APTOS_PRIVATE_KEY", cfg.Wallet.Key)
	assert.Contains(t, cfg.String(), "mainnet")
}
