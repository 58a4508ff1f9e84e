package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/numberpro/internal/config"
	"github.com/example/numberpro/internal/db"
	"github.com/example/numberpro/internal/migrate"
	"github.com/example/numberpro/internal/numberpro"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "npctl",
		Short: "Telephone-number inventory client: look up ranges, find available numbers, reserve them",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newRangesCmd())
	root.AddCommand(newAvailableCmd())
	root.AddCommand(newReserveCmd())
	root.AddCommand(newReservationCmd())
	root.AddCommand(newJobCmd())
	root.AddCommand(newServeCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect loads config and establishes an inventory session for the one-shot
// commands.
func connect(ctx context.Context) (config.Config, *numberpro.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	client := numberpro.New(cfg.BaseURL, numberpro.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err := client.Connect(ctx); err != nil {
		return config.Config{}, nil, fmt.Errorf("connect to %s: %w", cfg.BaseURL, err)
	}
	return cfg, client, nil
}

// openDB loads config with server settings, opens the pool and applies
// migrations. Used by the commands that touch the job store.
func openDB(ctx context.Context) (config.Config, *db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.RequireServer(); err != nil {
		return config.Config{}, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return config.Config{}, nil, err
	}
	return cfg, d, nil
}
