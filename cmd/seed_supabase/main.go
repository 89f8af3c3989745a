// Package main seeds the Supabase catalog tables (subscription tiers and
// onboarding levels) from the built-in catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GuardianChain/launch_layer/internal/cli"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/services/catalog"
	supabase "github.com/GuardianChain/launch_layer/supabase/client"
)

// Seeded tables.
const (
	tableTiers  = "subscription_tiers"
	tableLevels = "onboarding_levels"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	var dryRun, noColor bool
	cmd := &cobra.Command{
		Use:           "seed_supabase",
		Short:         "Seed Supabase catalog tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cli.NewPrinter(cmd.OutOrStdout(), noColor)
			data, err := catalog.Embedded()
			if err != nil {
				p.Error("%v", err)
				return err
			}
			if dryRun {
				p.Info("%d tiers and %d levels would be seeded", len(data.Tiers), len(data.Levels))
				return nil
			}

			cfg, err := config.LoadWithEnvFiles(envFile)
			if err != nil {
				p.Error("%v", err)
				return err
			}
			if !cfg.SupabaseConfigured() {
				err := errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
				p.Error("%v", err)
				return err
			}
			client, _, err := supabase.NewResilient(supabase.ResilientConfig{
				Config:               supabase.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseServiceKey},
				RetryConfig:          supabase.DefaultRetryConfig(),
				CircuitBreakerConfig: supabase.DefaultCircuitBreakerConfig(),
			})
			if err != nil {
				p.Error("%v", err)
				return err
			}
			if err := seed(cmd.Context(), client, data, p); err != nil {
				p.Error("%v", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", ".env", "dotenv file with Supabase credentials")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be seeded without calling Supabase")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// seed inserts the catalog rows table by table and stops at the first
// rejected insert.
func seed(ctx context.Context, client *supabase.Client, data *catalog.Data, p *cli.Printer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	batches := []struct {
		table string
		rows  any
		count int
	}{
		{tableTiers, data.Tiers, len(data.Tiers)},
		{tableLevels, data.Levels, len(data.Levels)},
	}
	for _, b := range batches {
		resp, err := client.From(b.table).ExecuteInsert(ctx, b.rows)
		if err != nil {
			return fmt.Errorf("seed %s: %w", b.table, err)
		}
		if err := resp.Error(); err != nil {
			return fmt.Errorf("seed %s: %w", b.table, err)
		}
		p.Success("%s: %d rows", b.table, b.count)
	}
	return nil
}
