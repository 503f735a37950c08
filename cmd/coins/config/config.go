package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	BackendRPC    = "rpc"
	BackendMemory = "memory"
)

type AccountsConfig struct {
	Alice   string `yaml:"alice"`
	Charlie string `yaml:"charlie"`
}

type EthplorerConfig struct {
	URL    string  `yaml:"url"`
	APIKey string  `yaml:"api_key"`
	Limit  int     `yaml:"limit"`
	RPS    float64 `yaml:"rps"`
}

type SpecialCaseConfig struct {
	Token  string `yaml:"token"`
	Method string `yaml:"method"`
	Sender string `yaml:"sender"`
}

type CoinsConfig struct {
	// Backend is "rpc" (a dev node or fork) or "memory" (in-process chain).
	Backend string `yaml:"backend"`
	// Mode is "local" or "forked".
	Mode          string `yaml:"mode"`
	RPCURL        string `yaml:"rpc_url"`
	Impersonation string `yaml:"impersonation"`
	ArtifactsDir  string `yaml:"artifacts_dir"`

	PoolData     string `yaml:"pool_data"`
	BasePoolData string `yaml:"base_pool_data"`
	MethodMap    string `yaml:"method_map"`

	Accounts AccountsConfig `yaml:"accounts"`

	Ethplorer EthplorerConfig `yaml:"ethplorer"`
	// StaticHolders replaces Ethplorer with fixed rankings when non-empty.
	StaticHolders map[string][]string `yaml:"static_holders"`
	// SpecialCases replaces the built-in special cases when non-empty.
	SpecialCases []SpecialCaseConfig `yaml:"special_cases"`

	LogFile string `yaml:"log_file"`
}

// LoadConfig reads a configuration file from the given path and unmarshals it
// into a CoinsConfig struct.
func LoadConfig(path string) (*CoinsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := CoinsConfig{
		Backend: BackendRPC,
		Mode:    "local",
		LogFile: "coins.log",
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for missing or malformed fields.
func (c *CoinsConfig) Validate() error {
	switch c.Backend {
	case BackendRPC:
		if c.RPCURL == "" {
			return errors.New("config: rpc_url is required for the rpc backend")
		}
	case BackendMemory:
		if c.Mode == "forked" {
			return errors.New("config: forked mode needs the rpc backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Mode != "local" && c.Mode != "forked" {
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.PoolData == "" {
		return errors.New("config: pool_data is required")
	}

	for field, addr := range map[string]string{"accounts.alice": c.Accounts.Alice, "accounts.charlie": c.Accounts.Charlie} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: %s %q is not an address", field, addr)
		}
	}
	for tok, addrs := range c.StaticHolders {
		if !common.IsHexAddress(tok) {
			return fmt.Errorf("config: static_holders key %q is not an address", tok)
		}
		for _, a := range addrs {
			if !common.IsHexAddress(a) {
				return fmt.Errorf("config: static holder %q of %s is not an address", a, tok)
			}
		}
	}
	for i, sc := range c.SpecialCases {
		if !common.IsHexAddress(sc.Token) || !common.IsHexAddress(sc.Sender) {
			return fmt.Errorf("config: special_cases[%d] needs token and sender addresses", i)
		}
		if sc.Method == "" {
			return fmt.Errorf("config: special_cases[%d] has no method", i)
		}
	}
	if c.Ethplorer.Limit < 0 || c.Ethplorer.RPS < 0 {
		return errors.New("config: ethplorer limit and rps must be non-negative")
	}
	return nil
}

func (c *CoinsConfig) Alice() common.Address   { return common.HexToAddress(c.Accounts.Alice) }
func (c *CoinsConfig) Charlie() common.Address { return common.HexToAddress(c.Accounts.Charlie) }
