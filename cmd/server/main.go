package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coedit/coedit-server/internal/app"
	"github.com/coedit/coedit-server/internal/config"
	"github.com/coedit/coedit-server/internal/log"
)

func main() {
	var (
		cfgFile   string
		overrides config.Config
	)

	rootCmd := &cobra.Command{
		Use:   "coedit-server",
		Short: "CoEdit collaborative editing backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap := log.New(overrides.LogLevel)

			cfg, path, err := config.Load(bootstrap, cfgFile)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting coedit server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to configuration file")
	rootCmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	rootCmd.Flags().StringVar(&overrides.DatabaseURL, "database-url", "", "postgres connection string")
	rootCmd.Flags().StringVar(&overrides.FrontendURL, "frontend-url", "", "allowed CORS origin")
	rootCmd.Flags().StringVar(&overrides.JWTSecret, "jwt-secret", "", "JWT signing secret")
	rootCmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	rootCmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
