package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/numberpro/internal/auth"
	"github.com/example/numberpro/internal/crypto"
	"github.com/example/numberpro/internal/jobs"
	"github.com/example/numberpro/internal/numberpro"
	"github.com/example/numberpro/internal/provision"
	"github.com/example/numberpro/internal/scheduler"
	"github.com/example/numberpro/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the provisioning dashboard + job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			log := newLogger(cfg.LogLevel)

			aead, err := crypto.New(cfg.CredEncKey)
			if err != nil {
				return err
			}
			authStore := auth.NewStore(d, cfg.SessionHashKey, cfg.SessionBlockKey, aead)
			jobRepo := jobs.NewRepo(d)

			client := numberpro.New(cfg.BaseURL, numberpro.Credentials{
				Username: cfg.Username,
				Password: cfg.Password,
			})
			if err := client.Connect(ctx); err != nil {
				return fmt.Errorf("connect to %s: %w", cfg.BaseURL, err)
			}

			s := &scheduler.Scheduler{
				Repo:     jobRepo,
				Engine:   &provision.Engine{Provider: client},
				Creds:    authStore,
				BaseURL:  cfg.BaseURL,
				Interval: cfg.PollInterval(),
				Log:      log.With("component", "scheduler"),
			}
			go func() { _ = s.Run(ctx) }()

			ws := &web.Server{Auth: authStore, Jobs: jobRepo, Log: log.With("component", "web")}
			return web.Start(ctx, cfg.HTTPAddr, ws.Routes(), log)
		},
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
