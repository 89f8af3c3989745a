// Package main runs the GuardianChain launch gateway: the launch control,
// Supabase operations, catalog, i18n and admin HTTP APIs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/middleware"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Run the GuardianChain launch gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg, logger); err != nil {
				logger.WithError(err).Error("gateway stopped with error")
				return err
			}
			return nil
		},
	}
	root.AddCommand(newTokenCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for an allowlisted operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := issueOperatorToken(cfg, userID, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "operator ID listed in ADMIN_USER_IDS")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func loadConfig() (config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(serviceID, cfg.LogLevel, cfg.LogFormat), nil
}

// issueOperatorToken signs an admin token for an allowlisted operator.
func issueOperatorToken(cfg config.Config, userID string, ttl time.Duration, now time.Time) (string, error) {
	if cfg.AdminJWTSecret == "" {
		return "", errors.New("ADMIN_JWT_SECRET is not set")
	}
	role := newOperatorSet(cfg.AdminUserIDs).resolveRole(userID)
	if role == "" {
		return "", fmt.Errorf("operator %q is not listed in ADMIN_USER_IDS", userID)
	}
	return middleware.IssueToken(cfg.AdminJWTSecret, userID, role, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
}

// serve runs the HTTP server and background workers until ctx ends.
func serve(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.base.Start(gctx)
	})
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return srv.base.Stop()
	})
	return g.Wait()
}
