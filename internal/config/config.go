package config

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment override, e.g. FUNDER_WALLET_PATH.
// Fields carry no envconfig tag: a tag makes envconfig also read the bare
// name (PATH, USER, HOST) when the prefixed variable is unset.
const envPrefix = "FUNDER"

// Supported chain backends.
const (
	BackendEsplora = "esplora"
	BackendRPC     = "rpc"
)

// Supported funding address types.
const (
	AddressP2PKH      = "p2pkh"
	AddressP2WPKH     = "p2wpkh"
	AddressP2SHP2WPKH = "p2sh-p2wpkh"
	AddressP2TR       = "p2tr"
)

// Config represents the application configuration
type Config struct {
	Network  string         `yaml:"network" split_words:"true"`
	Wallet   WalletConfig   `yaml:"wallet" split_words:"true"`
	Chain    ChainConfig    `yaml:"chain" split_words:"true"`
	Explorer ExplorerConfig `yaml:"explorer" split_words:"true"`
	Funding  FundingConfig  `yaml:"funding" split_words:"true"`
	Pebble   PebbleConfig   `yaml:"pebble" split_words:"true"`
	Server   ServerConfig   `yaml:"server" split_words:"true"`
	Log      LogConfig      `yaml:"log" split_words:"true"`
}

// WalletConfig points at the wallet record on disk
type WalletConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

// ChainConfig selects and configures the chain-query backend
type ChainConfig struct {
	Backend string        `yaml:"backend" split_words:"true"`
	Esplora EsploraConfig `yaml:"esplora" split_words:"true"`
	RPC     RPCConfig     `yaml:"rpc" split_words:"true"`
}

// EsploraConfig represents an Esplora REST endpoint
type EsploraConfig struct {
	URL            string        `yaml:"url" split_words:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`
	MaxRetries     int           `yaml:"max_retries" split_words:"true"`
}

// RPCConfig represents the configuration for a btcd or bitcoind node
type RPCConfig struct {
	Host       string `yaml:"host" split_words:"true"`
	User       string `yaml:"user" split_words:"true"`
	Pass       string `yaml:"pass" split_words:"true"`
	Cert       string `yaml:"cert" split_words:"true"`
	DisableTLS bool   `yaml:"disable_tls" split_words:"true"`
	HTTPMode   bool   `yaml:"http_mode" split_words:"true"` // Use HTTP POST instead of WebSocket (for bitcoind)
}

// ExplorerConfig represents the block explorer used for the funding probe
type ExplorerConfig struct {
	URL            string        `yaml:"url" split_words:"true"`
	AccessKey      string        `yaml:"access_key" split_words:"true"`
	ChainShortName string        `yaml:"chain_short_name" split_words:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`
}

// FundingConfig tunes the funding pipeline
type FundingConfig struct {
	FeeTargetBlocks   int           `yaml:"fee_target_blocks" split_words:"true"`
	PollInterval      time.Duration `yaml:"poll_interval" split_words:"true"`
	CooldownStep      time.Duration `yaml:"cooldown_step" split_words:"true"`
	BroadcastAttempts int           `yaml:"broadcast_attempts" split_words:"true"`
	RetryDelay        time.Duration `yaml:"retry_delay" split_words:"true"`
	AddressType       string        `yaml:"address_type" split_words:"true"`
}

// PebbleConfig represents the Pebble database configuration.
// An empty path disables the transaction cache and broadcast journal.
type PebbleConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port" split_words:"true"`
	Host string `yaml:"host" split_words:"true"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level string `yaml:"level" split_words:"true"`
	JSON  bool   `yaml:"json" split_words:"true"`
	File  string `yaml:"file" split_words:"true"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Network: "mainnet",
		Wallet: WalletConfig{
			Path: "./wallet.json",
		},
		Chain: ChainConfig{
			Backend: BackendEsplora,
			Esplora: EsploraConfig{
				URL:            "https://blockstream.info/api",
				RequestTimeout: 30 * time.Second,
				MaxRetries:     3,
			},
		},
		Explorer: ExplorerConfig{
			URL:            "https://www.oklink.com",
			ChainShortName: "btc",
			RequestTimeout: 30 * time.Second,
		},
		Funding: FundingConfig{
			FeeTargetBlocks:   8,
			PollInterval:      5 * time.Second,
			CooldownStep:      15 * time.Second,
			BroadcastAttempts: 3,
			RetryDelay:        15 * time.Second,
			AddressType:       AddressP2PKH,
		},
		Pebble: PebbleConfig{
			Path: "./data/pebble",
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	if _, err := c.ChainParams(); err != nil {
		return err
	}

	switch c.Chain.Backend {
	case BackendEsplora, BackendRPC:
	default:
		return fmt.Errorf("unknown chain backend: %q", c.Chain.Backend)
	}

	switch c.Funding.AddressType {
	case AddressP2PKH, AddressP2WPKH, AddressP2SHP2WPKH, AddressP2TR:
	default:
		return fmt.Errorf("unknown funding address type: %q", c.Funding.AddressType)
	}

	if c.Funding.BroadcastAttempts < 1 {
		return fmt.Errorf("broadcast_attempts must be at least 1")
	}
	if c.Funding.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	return nil
}

// ChainParams maps the configured network name to its chain parameters
func (c *Config) ChainParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "mainnet", "":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network: %q", c.Network)
	}
}
