// Package deployment persists token deployment records and deploys the token
// contract to a configured network.
package deployment

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GuardianChain/launch_layer/internal/chain"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
)

// Deployment sources.
const (
	SourceAPI        = "api"
	SourceAutoDeploy = "auto-deploy"
)

// ErrNotDeployed is returned when a network has no deployment record.
var ErrNotDeployed = errors.New("token not deployed")

// Record is the persisted result of a token deployment, stored at
// deployments/<network>.json.
type Record struct {
	Network       string    `json:"network"`
	ChainID       int64     `json:"chain_id"`
	Address       string    `json:"address"`
	TxHash        string    `json:"tx_hash"`
	Deployer      string    `json:"deployer"`
	BlockNumber   uint64    `json:"block_number"`
	GasUsed       uint64    `json:"gas_used"`
	TokenName     string    `json:"token_name"`
	TokenSymbol   string    `json:"token_symbol"`
	InitialSupply string    `json:"initial_supply"`
	ExplorerURL   string    `json:"explorer_url,omitempty"`
	Source        string    `json:"source"`
	DeployedAt    time.Time `json:"deployed_at"`
}

// Registry reads and writes deployment records in the JSON store.
type Registry struct {
	store *jsonstore.Store
}

// NewRegistry creates a registry over store.
func NewRegistry(store *jsonstore.Store) *Registry {
	return &Registry{store: store}
}

// Get returns the record for network or ErrNotDeployed.
func (r *Registry) Get(network string) (*Record, error) {
	var rec Record
	if err := r.store.Get(jsonstore.CollectionDeployments, network, &rec); err != nil {
		if errors.Is(err, jsonstore.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", network, ErrNotDeployed)
		}
		return nil, err
	}
	return &rec, nil
}

// Exists reports whether network has a record.
func (r *Registry) Exists(network string) bool {
	return r.store.Exists(jsonstore.CollectionDeployments, network)
}

// Save writes rec under its network name.
func (r *Registry) Save(rec *Record) error {
	if rec.Network == "" {
		return fmt.Errorf("deployment record: network is required")
	}
	return r.store.Put(jsonstore.CollectionDeployments, rec.Network, rec)
}

// AddressBook returns contract addresses of the given networks that have
// been deployed.
func (r *Registry) AddressBook(networks []string) map[string]string {
	out := make(map[string]string)
	for _, n := range networks {
		if rec, err := r.Get(n); err == nil && rec.Address != "" {
			out[n] = rec.Address
		}
	}
	return out
}

// =============================================================================
// Token Deployer
// =============================================================================

// Deployer deploys the token to one network.
type Deployer interface {
	Deploy(ctx context.Context, network config.NetworkConfig) (*Record, error)
}

// DialFunc opens a chain client for a network.
type DialFunc func(ctx context.Context, network config.NetworkConfig) (*chain.Client, error)

// DialNetwork dials the network's RPC endpoint.
func DialNetwork(ctx context.Context, network config.NetworkConfig) (*chain.Client, error) {
	endpoint := network.RPCEndpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("network %s: rpc endpoint not set (%s)", network.Name, network.RPCURLEnv)
	}
	return chain.NewClient(ctx, chain.Config{
		RPCURL:  endpoint,
		ChainID: network.ChainID,
		Timeout: 30 * time.Second,
	})
}

// TokenDeployer deploys the token artifact with (name, symbol, supply)
// constructor arguments.
type TokenDeployer struct {
	Token    config.TokenConfig
	Artifact *chain.Artifact
	Key      *ecdsa.PrivateKey
	Dial     DialFunc
	Source   string
	Now      func() time.Time
}

// Deploy dials the network, deploys the contract and returns the record. The
// record is not persisted.
func (d *TokenDeployer) Deploy(ctx context.Context, network config.NetworkConfig) (*Record, error) {
	if d.Key == nil {
		return nil, fmt.Errorf("deployer key not configured")
	}
	if d.Artifact == nil {
		return nil, fmt.Errorf("token artifact not loaded")
	}

	supply, err := chain.ParseUnits(d.Token.InitialSupply, d.Token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("parse initial supply: %w", err)
	}

	dial := d.Dial
	if dial == nil {
		dial = DialNetwork
	}
	client, err := dial(ctx, network)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	res, err := client.DeployContract(ctx, d.Key, d.Artifact, d.Token.Name, d.Token.Symbol, supply)
	if err != nil {
		return nil, fmt.Errorf("deploy %s to %s: %w", d.Token.Symbol, network.Name, err)
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	source := d.Source
	if source == "" {
		source = SourceAPI
	}

	rec := &Record{
		Network:       network.Name,
		ChainID:       network.ChainID,
		Address:       res.Address.Hex(),
		TxHash:        res.TxHash.Hex(),
		Deployer:      res.Deployer.Hex(),
		BlockNumber:   res.BlockNumber,
		GasUsed:       res.GasUsed,
		TokenName:     d.Token.Name,
		TokenSymbol:   d.Token.Symbol,
		InitialSupply: d.Token.InitialSupply,
		Source:        source,
		DeployedAt:    now().UTC(),
	}
	if network.Explorer != "" {
		rec.ExplorerURL = strings.TrimSuffix(network.Explorer, "/") + "/address/" + rec.Address
	}
	return rec, nil
}

// NewTokenDeployer loads the artifact and key from their configured sources.
func NewTokenDeployer(token config.TokenConfig, artifactPath, privateKey, source string) (*TokenDeployer, error) {
	artifact, err := chain.LoadArtifact(artifactPath)
	if err != nil {
		return nil, err
	}
	key, err := chain.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &TokenDeployer{Token: token, Artifact: artifact, Key: key, Source: source}, nil
}
