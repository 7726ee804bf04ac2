package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/typeduel-server/internal/app"
	"github.com/vovakirdan/typeduel-server/internal/config"
	applog "github.com/vovakirdan/typeduel-server/internal/log"
)

type serverFlags struct {
	configPath string
	addr       string
	logLevel   string
	dbPath     string
	grace      time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags serverFlags

	cmd := &cobra.Command{
		Use:           "typeduel-server",
		Short:         "Authority server for two-player typing duels",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to config file (yaml)")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "sqlite database path")
	cmd.Flags().DurationVar(&flags.grace, "empty-room-grace", 0, "how long an empty room survives")

	return cmd
}

func run(cmd *cobra.Command, flags serverFlags) error {
	// Missing .env is fine.
	_ = godotenv.Load()

	bootLogger := applog.New("info")
	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.UpdateFrom(config.Config{
		Addr:           flags.addr,
		LogLevel:       flags.logLevel,
		DatabasePath:   flags.dbPath,
		EmptyRoomGrace: flags.grace,
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := applog.New(cfg.LogLevel)
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting typeduel server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
