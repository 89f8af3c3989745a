// Package main is the bridge setup CLI: it provisions, tests and reports on
// the GTT cross-chain bridge routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GuardianChain/launch_layer/internal/cli"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/services/bridge"
)

// Actions.
const (
	actionSetup  = "setup"
	actionTest   = "test"
	actionStatus = "status"
	actionList   = "list"
)

type options struct {
	action  string
	bridge  string
	source  string
	target  string
	amount  string
	noColor bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "bridge-setup",
		Short:         "Configure and test GTT bridge routes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := cli.NewPrinter(cmd.OutOrStdout(), opts.noColor)
			svc, err := newService()
			if err != nil {
				printer.Error("%v", err)
				return err
			}
			return execute(cmd.Context(), svc, opts, printer)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.action, "action", actionSetup, "setup, test, status or list")
	f.StringVar(&opts.bridge, "bridge", "", "bridge key ("+strings.Join(bridge.Keys(), ", ")+")")
	f.StringVar(&opts.source, "source", "", "source chain (defaults to the bridge route)")
	f.StringVar(&opts.target, "target", "", "target chain (defaults to the bridge route)")
	f.StringVar(&opts.amount, "amount", "1", "GTT amount for --action test")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	return cmd
}

func newService() (*bridge.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	launch, err := config.LoadLaunchConfigOrDefault(cfg.LaunchConfigPath)
	if err != nil {
		return nil, err
	}
	store := jsonstore.New(cfg.DataDir)
	return bridge.New(bridge.Options{
		Store:    store,
		Registry: deployment.NewRegistry(store),
		Logger:   logging.New("bridge-setup", cfg.LogLevel, cfg.LogFormat),
		Decimals: launch.Token.Decimals,
	})
}

// run executes one action against svc.
func run(ctx context.Context, svc *bridge.Service, opts options, p *cli.Printer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.action {
	case actionSetup:
		return runSetup(ctx, svc, opts, p)
	case actionTest:
		return runTest(ctx, svc, opts, p)
	case actionStatus:
		return runStatus(ctx, svc, opts, p)
	case actionList:
		return runList(ctx, svc, p)
	default:
		return fmt.Errorf("unknown action %q (want setup, test, status or list)", opts.action)
	}
}

// execute runs the action and writes the error log when it fails.
func execute(ctx context.Context, svc *bridge.Service, opts options, p *cli.Printer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := run(ctx, svc, opts, p)
	if err == nil {
		return nil
	}
	p.Error("%v", err)
	if werr := svc.RecordFailure(ctx, opts.action, err); werr != nil {
		p.Warning("%v", werr)
	} else {
		p.Warning("error log written to %s/%s", jsonstore.CollectionBridges, bridge.ErrorLogFile)
	}
	return err
}

func requireBridge(opts options) error {
	if opts.bridge == "" {
		return fmt.Errorf("--bridge is required for --action %s", opts.action)
	}
	return nil
}

func progress(w io.Writer, prefix string) (bridge.ProgressFunc, func()) {
	var bar *cli.ProgressBar
	fn := func(name string, index, total int) {
		if bar == nil {
			bar = cli.NewProgressBar(w, total, prefix)
		}
		bar.Step(name)
	}
	done := func() {
		if bar != nil {
			bar.Finish()
		}
	}
	return fn, done
}

func runSetup(ctx context.Context, svc *bridge.Service, opts options, p *cli.Printer) error {
	if err := requireBridge(opts); err != nil {
		return err
	}
	p.Heading("Configuring %s bridge", opts.bridge)
	step, done := progress(p.Writer(), "setup")
	cfg, err := svc.Configure(ctx, bridge.ConfigureRequest{
		Bridge:   opts.bridge,
		Source:   opts.source,
		Target:   opts.target,
		Progress: step,
	})
	done()
	if err != nil {
		return err
	}
	p.Success("%s configured: %s -> %s", cfg.Name, cfg.Source, cfg.Target)
	p.KeyValues(configValues(cfg))
	return nil
}

func runTest(ctx context.Context, svc *bridge.Service, opts options, p *cli.Printer) error {
	if err := requireBridge(opts); err != nil {
		return err
	}
	p.Heading("Testing %s bridge with %s GTT", opts.bridge, opts.amount)
	step, done := progress(p.Writer(), "transfer")
	res, err := svc.Test(ctx, bridge.TestRequest{
		Bridge:   opts.bridge,
		Amount:   opts.amount,
		Progress: step,
	})
	done()
	if err != nil {
		if res != nil {
			p.Warning("test %s recorded as %s after %d phases", res.ID, res.Status, len(res.Phases))
		}
		return err
	}
	p.Success("transfer %s %s", res.ID, res.Status)
	p.KeyValues(map[string]string{
		"route":    res.Source + " -> " + res.Target,
		"amount":   res.Amount,
		"fee":      res.Fee,
		"received": res.Received,
		"duration": (time.Duration(res.TotalMS) * time.Millisecond).String(),
	})
	return nil
}

func runStatus(ctx context.Context, svc *bridge.Service, opts options, p *cli.Printer) error {
	if opts.bridge == "" {
		configs, err := svc.List(ctx)
		if err != nil {
			return err
		}
		if len(configs) == 0 {
			p.Info("no bridges configured")
			return nil
		}
		rows := make([][]string, 0, len(configs))
		for _, c := range configs {
			rows = append(rows, []string{c.Bridge, c.Source + " -> " + c.Target, c.Status, c.ConfiguredAt.Format(time.RFC3339)})
		}
		p.Table([]string{"BRIDGE", "ROUTE", "STATUS", "CONFIGURED"}, rows)
		return nil
	}

	cfg, err := svc.Status(ctx, opts.bridge)
	if err != nil {
		return err
	}
	p.Heading("%s bridge", cfg.Name)
	values := configValues(cfg)
	if last, err := svc.LastTest(ctx, opts.bridge); err == nil {
		values["last_test"] = last.Status + " at " + last.CompletedAt.Format(time.RFC3339)
	} else if !errors.Is(err, jsonstore.ErrNotFound) {
		return err
	}
	p.KeyValues(values)
	return nil
}

func runList(ctx context.Context, svc *bridge.Service, p *cli.Printer) error {
	configured := map[string]bool{}
	configs, err := svc.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range configs {
		configured[c.Bridge] = true
	}

	rows := make([][]string, 0)
	for _, b := range bridge.Bridges() {
		state := "-"
		if configured[b.Key] {
			state = bridge.StatusConfigured
		}
		rows = append(rows, []string{
			b.Key,
			b.Kind,
			b.DefaultSource + " -> " + b.DefaultTarget,
			strconv.FormatInt(b.FeeBps, 10),
			state,
		})
	}
	p.Table([]string{"BRIDGE", "KIND", "ROUTE", "FEE_BPS", "STATE"}, rows)
	return nil
}

func configValues(cfg *bridge.Config) map[string]string {
	values := map[string]string{
		"route":          cfg.Source + " -> " + cfg.Target,
		"kind":           cfg.Kind,
		"fee_bps":        strconv.FormatInt(cfg.FeeBps, 10),
		"limits":         cfg.MinTransfer + " - " + cfg.MaxTransfer + " GTT",
		"finality":       strconv.Itoa(cfg.FinalityMinutes) + "m",
		"status":         cfg.Status,
		"configured":     cfg.ConfiguredAt.Format(time.RFC3339),
		"token_contract": cfg.TokenContract,
	}
	if cfg.TokenContract == "" {
		delete(values, "token_contract")
	}
	return values
}
