package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"postwatch/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run checks on a schedule until interrupted",
	RunE:  watchAction,
}

func watchAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func() {
		if err := runCheck(ctx, cfg, logger); err != nil {
			logger.Error().Err(err).Msg("check failed")
		}
	}

	// Initial check on startup, then on schedule. Each scheduled job runs
	// to completion inside its tick; cron serializes nothing beyond that,
	// which matches the single-writer cursor assumption as long as only
	// one watch process runs.
	run()

	c := cron.New()
	if _, err := c.AddFunc(cfg.Watch.Schedule, run); err != nil {
		return fmt.Errorf("schedule checks: %w", err)
	}
	c.Start()
	logger.Info().Str("schedule", cfg.Watch.Schedule).Msg("watching profile")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("watch stopped")
	return nil
}
