package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"serviceportal/internal/config"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operator commands for the service portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(scheduleDefaultsCmd())
	rootCmd.AddCommand(pricingCmd())
	rootCmd.AddCommand(notifyTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every database-backed subcommand needs
type env struct {
	cfg   *config.Config
	store *store.GormStore
	log   *zap.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	logger, err := services.NewLogger(cfg.LogJSON)
	if err != nil {
		return nil, err
	}
	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, store: store.NewGormStore(db), log: logger}, nil
}
