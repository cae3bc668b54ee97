package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gainsai/gains-backend/internal/clock"
	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/db"
	"github.com/gainsai/gains-backend/internal/gateway"
	"github.com/gainsai/gains-backend/internal/migration"
	"github.com/gainsai/gains-backend/internal/observability"
	"github.com/gainsai/gains-backend/internal/redis"
	"github.com/gainsai/gains-backend/internal/referral"
	"github.com/gainsai/gains-backend/internal/server"
	"github.com/gainsai/gains-backend/internal/webhook"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "gains",
		Short:   "Gains AI backend",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run ledger database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			return runServe()
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.GateModule,
		clock.Module,
		redis.Module,
		referral.Module,
		gateway.Module,
		webhook.Module,
		server.Module,
		fx.Invoke(warnInsecureDefaults),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func warnInsecureDefaults(cfg config.Config, log *zap.Logger) {
	if strings.TrimSpace(cfg.Webhook.Secret) == "" {
		log.Warn("REVENUECAT_WEBHOOK_SECRET not set, webhook deliveries are accepted without authentication")
	}
	if strings.TrimSpace(cfg.Anthropic.APIKey) == "" {
		log.Warn("CLAUDE_API_KEY not set, /api/claude will relay upstream auth errors")
	}
	if strings.TrimSpace(cfg.Perplexity.APIKey) == "" {
		log.Warn("PERPLEXITY_API_KEY not set, /api/perplexity will relay upstream auth errors")
	}
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
