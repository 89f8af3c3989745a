package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LaunchConfig is the launch catalog: the token being launched, the networks
// it deploys to, and the Supabase hardening steps.
type LaunchConfig struct {
	Token          TokenConfig     `yaml:"token" json:"token"`
	Networks       []NetworkConfig `yaml:"networks" json:"networks"`
	HardeningSteps []string        `yaml:"hardening_steps" json:"hardening_steps"`
}

// TokenConfig describes the ERC-20 token deployed on every network.
type TokenConfig struct {
	Name          string `yaml:"name" json:"name"`
	Symbol        string `yaml:"symbol" json:"symbol"`
	Decimals      int    `yaml:"decimals" json:"decimals"`
	InitialSupply string `yaml:"initial_supply" json:"initial_supply"` // whole tokens
}

// NetworkConfig describes a deployment target.
type NetworkConfig struct {
	Name         string `yaml:"name" json:"name"`
	ChainID      int64  `yaml:"chain_id" json:"chain_id"`
	RPCURL       string `yaml:"rpc_url,omitempty" json:"-"`
	RPCURLEnv    string `yaml:"rpc_url_env" json:"rpc_url_env"`
	NativeSymbol string `yaml:"native_symbol" json:"native_symbol"`
	Explorer     string `yaml:"explorer" json:"explorer"`
	Testnet      bool   `yaml:"testnet" json:"testnet"`
}

// RPCEndpoint returns the explicit RPC URL or the value of RPCURLEnv.
func (n NetworkConfig) RPCEndpoint() string {
	if n.RPCURL != "" {
		return n.RPCURL
	}
	if n.RPCURLEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(n.RPCURLEnv))
}

// Network looks up a network by name (case-insensitive).
func (c *LaunchConfig) Network(name string) (NetworkConfig, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

// NetworkNames returns network names in catalog order.
func (c *LaunchConfig) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for _, n := range c.Networks {
		names = append(names, n.Name)
	}
	return names
}

// Validate checks the catalog for missing or duplicate entries.
func (c *LaunchConfig) Validate() error {
	if c.Token.Symbol == "" || c.Token.Name == "" {
		return fmt.Errorf("token: name and symbol are required")
	}
	if c.Token.Decimals < 0 || c.Token.Decimals > 36 {
		return fmt.Errorf("token: decimals out of range: %d", c.Token.Decimals)
	}
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	seen := make(map[string]bool, len(c.Networks))
	for i, n := range c.Networks {
		if n.Name == "" {
			return fmt.Errorf("network %d: name is required", i)
		}
		if n.Name != strings.ToLower(n.Name) {
			return fmt.Errorf("network %s: name must be lower-case", n.Name)
		}
		if seen[n.Name] {
			return fmt.Errorf("network %s: duplicate name", n.Name)
		}
		seen[n.Name] = true
		if n.ChainID <= 0 {
			return fmt.Errorf("network %s: chain_id is required", n.Name)
		}
		if n.RPCURL == "" && n.RPCURLEnv == "" {
			return fmt.Errorf("network %s: rpc_url or rpc_url_env is required", n.Name)
		}
	}
	return nil
}

// LoadLaunchConfig loads the launch catalog from config/launch.yaml.
func LoadLaunchConfig() (*LaunchConfig, error) {
	return LoadLaunchConfigFromPath("config/launch.yaml")
}

// LoadLaunchConfigFromPath loads the launch catalog from a specific path.
func LoadLaunchConfigFromPath(path string) (*LaunchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read launch config: %w", err)
	}

	cfg := DefaultLaunchConfig()
	// Token and hardening defaults survive when the file omits them.
	cfg.Networks = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse launch config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid launch config: %w", err)
	}
	return cfg, nil
}

// LoadLaunchConfigOrDefault loads the catalog, returning the default only
// when the file does not exist. Parse and validation errors are returned.
func LoadLaunchConfigOrDefault(path string) (*LaunchConfig, error) {
	cfg, err := LoadLaunchConfigFromPath(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultLaunchConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultLaunchConfig returns the built-in catalog.
func DefaultLaunchConfig() *LaunchConfig {
	return &LaunchConfig{
		Token: TokenConfig{
			Name:          "GuardianChain Token",
			Symbol:        "GTT",
			Decimals:      18,
			InitialSupply: "2500000000",
		},
		Networks: []NetworkConfig{
			{
				Name:         "polygon",
				ChainID:      137,
				RPCURLEnv:    "POLYGON_RPC_URL",
				NativeSymbol: "MATIC",
				Explorer:     "https://polygonscan.com",
			},
			{
				Name:         "base",
				ChainID:      8453,
				RPCURLEnv:    "BASE_RPC_URL",
				NativeSymbol: "ETH",
				Explorer:     "https://basescan.org",
			},
			{
				Name:         "arbitrum",
				ChainID:      42161,
				RPCURLEnv:    "ARBITRUM_RPC_URL",
				NativeSymbol: "ETH",
				Explorer:     "https://arbiscan.io",
			},
			{
				Name:         "ethereum",
				ChainID:      1,
				RPCURLEnv:    "ETHEREUM_RPC_URL",
				NativeSymbol: "ETH",
				Explorer:     "https://etherscan.io",
			},
		},
		HardeningSteps: []string{
			"enable_rls_on_public_tables",
			"revoke_anon_write_grants",
			"audit_security_definer_functions",
			"enforce_storage_bucket_policies",
		},
	}
}
