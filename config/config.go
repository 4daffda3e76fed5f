package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/knotx/relayer/pkg/chains/casper"
	"github.com/knotx/relayer/pkg/chains/evm"
	"github.com/knotx/relayer/pkg/rpcpool"
)

type APIConfig struct {
	Port int `mapstructure:"port" json:"port"`
}

// Config carries everything the relayer service needs. It is built once at
// startup and injected; nothing reads it through package state.
type Config struct {
	Environment   string
	ConfigPath    string
	EvmNetworks   []evm.NetworkConfig
	CasperNetwork *casper.NetworkConfig
	API           APIConfig
}

var validate = validator.New()

// LoadEnv loads the .env file for the given environment into the process
// environment, leaving already exported variables untouched, and lets viper
// read everything from the environment. A missing file is fine when the
// variables are exported some other way.
func LoadEnv(environment string) error {
	envFile := ".env"
	if environment != "" {
		envFile = fmt.Sprintf(".env.%s", environment)
	}
	if err := godotenv.Load(envFile); err != nil {
		if _, statErr := os.Stat(envFile); statErr == nil {
			return fmt.Errorf("error reading env file %s: %w", envFile, err)
		}
		log.Warn().Msgf("[Config] [LoadEnv] no %s file, using process environment only", envFile)
	}
	viper.AutomaticEnv()
	return nil
}

// InitLogger configures zerolog from the LOG_LEVEL variable, defaulting to
// info with a console writer.
func InitLogger() {
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// Load reads the per-chain JSON config files under configPath and assembles
// the full relayer configuration.
func Load(environment, configPath string) (*Config, error) {
	cfg := &Config{
		Environment: environment,
		ConfigPath:  configPath,
	}

	evmPath := fmt.Sprintf("%s/evm.json", configPath)
	if _, err := os.Stat(evmPath); err == nil {
		networks, err := ReadJsonArrayConfig[evm.NetworkConfig](evmPath)
		if err != nil {
			return nil, fmt.Errorf("error reading evm networks config: %w", err)
		}
		for i := range networks {
			networks[i].PrivateKey = resolveSecret(networks[i].PrivateKey)
			if err := validate.Struct(&networks[i]); err != nil {
				return nil, fmt.Errorf("invalid evm network config %s: %w", networks[i].Chain, err)
			}
		}
		cfg.EvmNetworks = networks
	}

	casperPath := fmt.Sprintf("%s/casper.json", configPath)
	if _, err := os.Stat(casperPath); err == nil {
		network, err := ReadJsonConfig[casper.NetworkConfig](casperPath)
		if err != nil {
			return nil, fmt.Errorf("error reading casper network config: %w", err)
		}
		network.PrivateKey = resolveSecret(network.PrivateKey)
		if err := validate.Struct(network); err != nil {
			return nil, fmt.Errorf("invalid casper network config: %w", err)
		}
		cfg.CasperNetwork = network
	}

	cfg.API.Port = viper.GetInt("API_PORT")
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	log.Info().
		Int("evmNetworks", len(cfg.EvmNetworks)).
		Bool("casper", cfg.CasperNetwork != nil).
		Msg("[Config] [Load] relayer configuration loaded")
	return cfg, nil
}

// ReadJsonArrayConfig reads a JSON file whose top level is an array of T.
// Viper only handles object roots, so the array is wrapped under a key first.
func ReadJsonArrayConfig[T any](filePath string) ([]T, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", filePath, err)
	}
	v := viper.New()
	v.SetConfigType("json")
	wrapped := fmt.Sprintf(`{"items": %s}`, string(raw))
	if err := v.ReadConfig(strings.NewReader(wrapped)); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", filePath, err)
	}
	var items []T
	if err := v.UnmarshalKey("items", &items); err != nil {
		return nil, fmt.Errorf("error unmarshaling config file %s: %w", filePath, err)
	}
	return items, nil
}

// ReadJsonConfig reads a JSON file holding a single T object.
func ReadJsonConfig[T any](filePath string) (*T, error) {
	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", filePath, err)
	}
	var item T
	if err := v.Unmarshal(&item); err != nil {
		return nil, fmt.Errorf("error unmarshaling config file %s: %w", filePath, err)
	}
	return &item, nil
}

// resolveSecret lets JSON configs reference secrets indirectly: a value of
// the form env:NAME is replaced with the variable's content.
func resolveSecret(value string) string {
	if name, ok := strings.CutPrefix(value, "env:"); ok {
		return viper.GetString(name)
	}
	return value
}

// EndpointsFor reads the chain's RPC endpoints from the environment. Urls and
// api keys come as comma-separated lists under <CHAIN>_RPC_URLS and
// <CHAIN>_RPC_API_KEYS, paired positionally with wraparound over the shorter
// list.
func EndpointsFor(chainName string) ([]rpcpool.Endpoint, error) {
	prefix := strings.ToUpper(strings.ReplaceAll(chainName, "-", "_"))
	urls := rpcpool.ParseList(viper.GetString(prefix + "_RPC_URLS"))
	keys := rpcpool.ParseList(viper.GetString(prefix + "_RPC_API_KEYS"))
	if len(urls) == 0 {
		return nil, fmt.Errorf("no rpc urls configured for chain %s (set %s_RPC_URLS)", chainName, prefix)
	}
	return rpcpool.EndpointsFromLists(urls, keys), nil
}
