package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopicA = "0x1111111111111111111111111111111111111111111111111111111111111111"
const testTopicB = "0x2222222222222222222222222222222222222222222222222222222222222222"

const sampleYAML = `
ethereum:
  http_url: "http://localhost:8545"
  poll_interval: 3s
account:
  address: "0x00000000000000000000000000000000000000aa"
exchange:
  order_topic: "` + testTopicA + `"
  trade_topic: "` + testTopicB + `"
tokens:
  - { address: "0x0000000000000000000000000000000000000000", ticker: ETH, decimals: 18 }
  - { address: "0x00000000000000000000000000000000000000c1", ticker: USDC, decimals: 6 }
markets:
  - base: ETH
    quote: USDC
    contract: "0x00000000000000000000000000000000000000d1"
    scale_factor: "1000000000000000000"
    price_factor: "1000000"
    fee: 99950
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FromFileWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "dex-trader", cfg.App.Name)
	assert.Equal(t, 3*time.Second, cfg.Ethereum.PollInterval)
	assert.Equal(t, uint64(2000), cfg.Ethereum.MaxBlockRange)
	assert.Equal(t, 1000, cfg.Exchange.DedupWindow)
	assert.Equal(t, "WETH", cfg.Router.WrappedTicker)
	require.Len(t, cfg.Tokens, 2)
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "ETH/USDC", cfg.Markets[0].Key())
	assert.Equal(t, uint64(99950), cfg.Markets[0].Fee)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("DEX_ACCOUNT_ADDRESS", "0x00000000000000000000000000000000000000bb")
	t.Setenv("DEX_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", cfg.Account.Address)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoad_WalletAddressEnv(t *testing.T) {
	t.Setenv("WALLET_ADDRESS", "0x00000000000000000000000000000000000000cc")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000cc", cfg.Account.Address)
}

func TestLoad_FileAccountKeptWithoutEnv(t *testing.T) {
	t.Setenv("DEX_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", cfg.Account.Address)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(body string) string
		wantErr string
	}{
		{
			name:    "unknown quote token",
			mutate:  func(b string) string { return strings.Replace(b, "quote: USDC", "quote: DAI", 1) },
			wantErr: "unknown quote token",
		},
		{
			name:    "fee above denominator",
			mutate:  func(b string) string { return strings.Replace(b, "fee: 99950", "fee: 100001", 1) },
			wantErr: "exceeds",
		},
		{
			name:    "zero scale factor",
			mutate:  func(b string) string { return strings.Replace(b, `scale_factor: "1000000000000000000"`, `scale_factor: "0"`, 1) },
			wantErr: "scale_factor",
		},
		{
			name:    "bad account",
			mutate:  func(b string) string { return strings.Replace(b, "0x00000000000000000000000000000000000000aa", "nope", 1) },
			wantErr: "account.address",
		},
		{
			name:    "short topic",
			mutate:  func(b string) string { return strings.Replace(b, testTopicA, "0x1234", 1) },
			wantErr: "order_topic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(sampleYAML)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseBig(t *testing.T) {
	n, ok := ParseBig("")
	require.True(t, ok)
	assert.Zero(t, n.Sign())

	n, ok = ParseBig("0x10")
	require.True(t, ok)
	assert.Equal(t, int64(16), n.Int64())

	_, ok = ParseBig("1.5")
	assert.False(t, ok)
}
