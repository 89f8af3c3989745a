// Package main builds the GTT exchange listing applications and the listing
// checklist, and records submissions.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/GuardianChain/launch_layer/internal/cli"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/services/cexapply"
)

type options struct {
	submit  string
	contact string
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
		Use:           "apply-cex",
		Short:         "Prepare GTT exchange listing applications",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := cli.NewPrinter(cmd.OutOrStdout(), opts.noColor)
			cfg, err := config.Load()
			if err != nil {
				printer.Error("%v", err)
				return err
			}
			launch, err := config.LoadLaunchConfigOrDefault(cfg.LaunchConfigPath)
			if err != nil {
				printer.Error("%v", err)
				return err
			}
			store := jsonstore.New(cfg.DataDir)
			builder, err := cexapply.NewBuilder(cexapply.Options{
				Launch:   launch,
				Store:    store,
				Registry: deployment.NewRegistry(store),
				Logger:   logging.New("apply-cex", cfg.LogLevel, cfg.LogFormat),
			})
			if err != nil {
				printer.Error("%v", err)
				return err
			}
			if err := run(cmd.Context(), builder, store, opts, printer); err != nil {
				printer.Error("%v", err)
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.submit, "submit", "", "mark the application for this exchange as submitted")
	f.StringVar(&opts.contact, "contact", "", "contact email recorded with --submit")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	return cmd
}

// run writes every application, then optionally records one submission.
func run(ctx context.Context, b *cexapply.Builder, store *jsonstore.Store, opts options, p *cli.Printer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.Heading("Preparing exchange listing applications")

	bundle, err := b.WriteAll(ctx)
	if err != nil {
		p.Warning("error log written to %s", filepath.Join(store.Root(), jsonstore.CollectionApplications, cexapply.ErrorLogFile))
		return err
	}

	rows := make([][]string, 0, len(bundle.Applications))
	for _, app := range bundle.Applications {
		rows = append(rows, []string{
			app.ExchangeName,
			app.Tier,
			fmt.Sprintf("$%d", app.ListingFeeUSD),
			app.Timeline.ExpectedListing.Format("2006-01-02"),
		})
	}
	p.Table([]string{"EXCHANGE", "TIER", "FEE", "EXPECTED LISTING"}, rows)

	dir := filepath.Join(store.Root(), jsonstore.CollectionApplications)
	p.Success("%d applications written", bundle.Summary.Count)
	p.KeyValues(map[string]string{
		"applications":  filepath.Join(dir, cexapply.ApplicationsFile),
		"checklist":     filepath.Join(dir, cexapply.ChecklistFile),
		"total_fees":    fmt.Sprintf("$%d", bundle.Summary.TotalListingFeesUSD),
		"first_listing": bundle.Summary.EarliestListing.Format(time.DateOnly),
		"last_listing":  bundle.Summary.LatestListing.Format(time.DateOnly),
	})

	if opts.submit == "" {
		return nil
	}
	app, err := b.Submit(ctx, opts.submit, opts.contact)
	if err != nil {
		return err
	}
	p.Success("%s application %s marked %s", app.ExchangeName, app.ID, app.Status)
	return nil
}
