package main

import (
	"context"
	"fmt"

	"github.com/ternarybob/specials/internal/app"
)

func runServe(ctx context.Context, application *app.App, args []string) error {
	logger := application.Logger

	if !application.Config.Scheduler.Enabled {
		logger.Warn().Msg("Scheduler disabled in configuration - nothing to serve")
		return nil
	}

	if err := application.StartScheduler(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	for _, job := range application.Status().Jobs {
		next := "-"
		if job.NextRun != nil {
			next = job.NextRun.Format("Mon 2006-01-02 15:04 MST")
		}
		logger.Info().
			Str("job", job.ID).
			Str("schedule", job.Schedule).
			Str("next_run", next).
			Msg("Job scheduled")
	}

	logger.Info().Msg("Scheduler running - Press Ctrl+C to stop")

	<-ctx.Done()

	logger.Info().Msg("Interrupt signal received, shutting down")
	return nil
}
