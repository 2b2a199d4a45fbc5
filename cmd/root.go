// Package cmd defines the streamprice command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/app"
	"github.com/JakeFAU/streamprice-crawler/internal/archive"
	"github.com/JakeFAU/streamprice-crawler/internal/config"
	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
	"github.com/JakeFAU/streamprice-crawler/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the application. Tests inject a fake.
type App interface {
	Run(ctx context.Context) error
	Scrape(ctx context.Context, countries []string) (app.Result, error)
	Report(ctx context.Context) (exchange.Report, archive.Result, error)
	Logger() *zap.Logger
	Close() error
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := server.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "streamprice",
		Short: "Scrapes streaming subscription prices per country and ranks them in one currency.",
		Long: `streamprice fetches the regional pricing pages of a streaming service, extracts
every plan and price, archives the snapshot and converts it into ranked reports.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				_ = appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		os.Exit(1)
	}
}
