package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evmNetworksJSON = `[
  {
    "chain": "ethereum",
    "evm_chain_id": 11155111,
    "gateway": "0x1111111111111111111111111111111111111111",
    "finality": 12,
    "block_time": 12,
    "private_key": "env:ETHEREUM_PRIVATE_KEY"
  }
]`

const casperNetworkJSON = `{
  "chain": "casper",
  "chain_name": "casper-test",
  "gateway": "hash-0101010101010101010101010101010101010101010101010101010101010101",
  "payment_amount": "5000000000"
}`

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evm.json"), []byte(evmNetworksJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "casper.json"), []byte(casperNetworkJSON), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("ETHEREUM_PRIVATE_KEY", "deadbeef")

	dir := writeConfigDir(t)
	cfg, err := Load("test", dir)
	require.NoError(t, err)

	require.Len(t, cfg.EvmNetworks, 1)
	network := cfg.EvmNetworks[0]
	assert.Equal(t, "ethereum", network.Chain)
	assert.Equal(t, uint64(11155111), network.EvmChainID)
	assert.Equal(t, "deadbeef", network.PrivateKey, "env: references resolve through the environment")

	require.NotNil(t, cfg.CasperNetwork)
	assert.Equal(t, "casper-test", cfg.CasperNetwork.ChainName)

	assert.Equal(t, 8080, cfg.API.Port, "default api port")
}

func TestLoadRejectsInvalidNetwork(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evm.json"),
		[]byte(`[{"chain": "ethereum"}]`), 0o644))
	_, err := Load("test", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid evm network config")
}

func TestLoadWithoutChainFiles(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load("test", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.EvmNetworks)
	assert.Nil(t, cfg.CasperNetwork)
}

func TestReadJsonArrayConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"chain":"a"},{"chain":"b"}]`), 0o644))

	type item struct {
		Chain string `mapstructure:"chain"`
	}
	items, err := ReadJsonArrayConfig[item](path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Chain)
	assert.Equal(t, "b", items[1].Chain)

	_, err = ReadJsonArrayConfig[item](filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestLoadEnvReadsDotEnvFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.unittest")
	require.NoError(t, os.WriteFile(envFile,
		[]byte("BSC_RPC_URLS=https://bsc-a,https://bsc-b\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Cleanup(func() { os.Unsetenv("BSC_RPC_URLS") })

	require.NoError(t, LoadEnv("unittest"))
	endpoints, err := EndpointsFor("bsc")
	require.NoError(t, err)
	require.Len(t, endpoints, 2)
	assert.Equal(t, "https://bsc-a", endpoints[0].URL)
}

func TestLoadEnvMissingFileIsFine(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, LoadEnv("no-such-env"))
}

func TestEndpointsFor(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("ETHEREUM_RPC_URLS", "https://a,https://b")
	viper.Set("ETHEREUM_RPC_API_KEYS", "k1")

	endpoints, err := EndpointsFor("ethereum")
	require.NoError(t, err)
	require.Len(t, endpoints, 2)
	assert.Equal(t, "https://a", endpoints[0].URL)
	assert.Equal(t, "k1", endpoints[0].APIKey)
	assert.Equal(t, "k1", endpoints[1].APIKey)

	_, err = EndpointsFor("bsc")
	require.Error(t, err)
}
