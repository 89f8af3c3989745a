package main

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuardianChain/launch_layer/internal/chain"
	"github.com/GuardianChain/launch_layer/internal/chain/chaintest"
	"github.com/GuardianChain/launch_layer/internal/cli"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/services/funding"
)

func newWatcher(t *testing.T, backend *chaintest.Backend, registry *deployment.Registry) *funding.Watcher {
	t.Helper()
	launch := config.DefaultLaunchConfig()
	network, ok := launch.Network("base")
	require.True(t, ok)

	artifact, err := chain.ParseArtifact([]byte(chaintest.TokenArtifact))
	require.NoError(t, err)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	dial := func(ctx context.Context, n config.NetworkConfig) (*chain.Client, error) {
		return chain.NewClientWithBackend(backend, chain.Config{
			RPCURL:       "http://node",
			ChainID:      n.ChainID,
			PollInterval: time.Millisecond,
		}), nil
	}
	balanceClient, err := dial(context.Background(), network)
	require.NoError(t, err)

	w, err := funding.New(funding.Config{
		Network:  network,
		Wallet:   chain.AddressFromKey(key),
		Interval: time.Hour,
	}, funding.Deps{
		Client: balanceClient,
		Deployer: &deployment.TokenDeployer{
			Token:    launch.Token,
			Artifact: artifact,
			Key:      key,
			Dial:     dial,
			Source:   deployment.SourceAutoDeploy,
		},
		Registry: registry,
	})
	require.NoError(t, err)
	return w
}

func TestRunDeploysWhenFunded(t *testing.T) {
	backend := chaintest.NewBackend(big.NewInt(1e18))
	registry := deployment.NewRegistry(jsonstore.New(t.TempDir()))
	w := newWatcher(t, backend, registry)

	var buf bytes.Buffer
	rec, err := run(context.Background(), w, registry, "base", cli.NewPrinter(&buf, true))
	require.NoError(t, err)

	assert.Equal(t, "base", rec.Network)
	assert.Equal(t, deployment.SourceAutoDeploy, rec.Source)
	assert.True(t, registry.Exists("base"))
	assert.Contains(t, buf.String(), "GTT deployed on base")
	assert.Contains(t, buf.String(), rec.Address)
	assert.Len(t, backend.Sent(), 1)
}

func TestRunAlreadyDeployed(t *testing.T) {
	registry := deployment.NewRegistry(jsonstore.New(t.TempDir()))
	require.NoError(t, registry.Save(&deployment.Record{
		Network: "base",
		ChainID: 8453,
		Address: "0x00000000000000000000000000000000000000bb",
	}))
	backend := chaintest.NewBackend(nil)
	w := newWatcher(t, backend, registry)

	var buf bytes.Buffer
	rec, err := run(context.Background(), w, registry, "base", cli.NewPrinter(&buf, true))
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", rec.Address)
	assert.Contains(t, buf.String(), "already deployed")
	assert.Empty(t, backend.Sent())
}

func TestRunStopsOnCancel(t *testing.T) {
	backend := chaintest.NewBackend(nil)
	registry := deployment.NewRegistry(jsonstore.New(t.TempDir()))
	w := newWatcher(t, backend, registry)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := run(ctx, w, registry, "base", cli.NewPrinter(&bytes.Buffer{}, true))
	assert.ErrorIs(t, err, funding.ErrStopped)
	assert.False(t, registry.Exists("base"))
}
