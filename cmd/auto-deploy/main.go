// Package main watches the deployer wallet and deploys the GTT token once
// the wallet holds enough native currency for gas.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GuardianChain/launch_layer/internal/chain"
	"github.com/GuardianChain/launch_layer/internal/cli"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/services/funding"
)

type options struct {
	network   string
	threshold string
	interval  time.Duration
	noColor   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "auto-deploy",
		Short:         "Deploy GTT as soon as the deployer wallet is funded",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := cli.NewPrinter(cmd.OutOrStdout(), opts.noColor)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := setup(ctx, opts)
			if err != nil {
				printer.Error("%v", err)
				return err
			}
			defer env.close()

			if _, err := run(ctx, env.watcher, env.registry, env.network, printer); err != nil {
				printer.Error("%v", err)
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.network, "network", "", "network to deploy to (default FUNDING_NETWORK)")
	f.StringVar(&opts.threshold, "threshold", "", "native balance that triggers deployment (default FUNDING_THRESHOLD)")
	f.DurationVar(&opts.interval, "interval", 0, "balance poll interval (default FUNDING_POLL_INTERVAL)")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	return cmd
}

type environment struct {
	watcher  *funding.Watcher
	registry *deployment.Registry
	network  string
	closers  []func()
}

func (e *environment) close() {
	for _, c := range e.closers {
		c()
	}
}

// setup resolves configuration and dials the funding network.
func setup(ctx context.Context, opts options) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DeployerPrivateKey == "" {
		return nil, errors.New("DEPLOYER_PRIVATE_KEY is not set")
	}
	logger := logging.New("auto-deploy", cfg.LogLevel, cfg.LogFormat)

	if opts.network == "" {
		opts.network = cfg.FundingNetwork
	}
	if opts.threshold == "" {
		opts.threshold = cfg.FundingThreshold
	}
	if opts.interval <= 0 {
		opts.interval = cfg.FundingPollInterval
	}

	launch, err := config.LoadLaunchConfigOrDefault(cfg.LaunchConfigPath)
	if err != nil {
		return nil, err
	}
	network, ok := launch.Network(opts.network)
	if !ok {
		return nil, fmt.Errorf("unknown network %q", opts.network)
	}

	deployer, err := deployment.NewTokenDeployer(launch.Token, cfg.TokenArtifact, cfg.DeployerPrivateKey, deployment.SourceAutoDeploy)
	if err != nil {
		return nil, err
	}
	client, err := deployment.DialNetwork(ctx, network)
	if err != nil {
		return nil, err
	}
	env := &environment{network: network.Name}
	env.closers = append(env.closers, client.Close)

	var recorder database.Recorder = database.NewMemoryRecorder(0)
	if cfg.DatabaseURL != "" {
		pg, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			env.close()
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = pg.Close() })
		recorder = pg
	}

	env.registry = deployment.NewRegistry(jsonstore.New(cfg.DataDir))
	env.watcher, err = funding.New(funding.Config{
		Network:   network,
		Wallet:    chain.AddressFromKey(deployer.Key),
		Threshold: opts.threshold,
		Interval:  opts.interval,
	}, funding.Deps{
		Client:   client,
		Deployer: deployer,
		Registry: env.registry,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}

// run watches until the token is deployed. A network that already has a
// deployment record counts as done.
func run(ctx context.Context, w *funding.Watcher, registry *deployment.Registry, network string, p *cli.Printer) (*deployment.Record, error) {
	err := w.Start(ctx)
	if errors.Is(err, funding.ErrAlreadyDeployed) {
		rec, getErr := registry.Get(network)
		if getErr != nil {
			return nil, getErr
		}
		p.Warning("GTT already deployed on %s at %s", network, rec.Address)
		return rec, nil
	}
	if err != nil {
		return nil, err
	}

	p.Info("waiting for deployer balance >= %s on %s", chain.FormatEther(w.Threshold()), network)
	rec, err := w.Wait()
	if err != nil {
		return nil, err
	}

	p.Success("GTT deployed on %s", rec.Network)
	values := map[string]string{
		"address":  rec.Address,
		"tx_hash":  rec.TxHash,
		"block":    strconv.FormatUint(rec.BlockNumber, 10),
		"gas_used": strconv.FormatUint(rec.GasUsed, 10),
		"checks":   strconv.Itoa(w.Checks()),
	}
	if rec.ExplorerURL != "" {
		values["explorer"] = rec.ExplorerURL
	}
	p.KeyValues(values)
	return rec, nil
}
