package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration file.
type Config struct {
	APIURL          string             `yaml:"api_url"`
	APIToken        string             `yaml:"api_token,omitempty"`
	RPCURL          string             `yaml:"rpc_url"`
	ContractAddress string             `yaml:"contract_address"`
	SessionFile     string             `yaml:"session_file"`
	PollInterval    time.Duration      `yaml:"poll_interval"`
	PrivateKey      string             `yaml:"private_key,omitempty"` // signs locally instead of eth_sendTransaction
	JWTSecret       string             `yaml:"jwt_secret,omitempty"`
	Network         blockchain.Network `yaml:"network"`
}

func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "foodtrace")
	}
	return ".foodtrace"
}

func DefaultConfig() *Config {
	return &Config{
		APIURL:          "http://127.0.0.1:8080",
		RPCURL:          blockchain.DefaultNetwork.RPCURLs[0],
		ContractAddress: blockchain.DefaultContractAddress,
		SessionFile:     filepath.Join(configDir(), "session.yaml"),
		PollInterval:    2 * time.Second,
		Network:         blockchain.DefaultNetwork,
	}
}

// LoadConfig reads path on top of DefaultConfig. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Network.ChainID == "" {
		cfg.Network = blockchain.DefaultNetwork
	}
	if _, ok := blockchain.ParseChainID(cfg.Network.ChainID); !ok {
		return nil, fmt.Errorf("network.chain_id %q is not a chain id", cfg.Network.ChainID)
	}
	cfg.Network.ChainID = blockchain.NormalizeChainID(cfg.Network.ChainID)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return cfg, nil
}
