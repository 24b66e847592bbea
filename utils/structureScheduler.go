package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"lms/logger"
	"lms/services/structure"
)

// regenerateStructures rebuilds missing and stale course structures.
func regenerateStructures(g *structure.Generator, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := g.RegenerateStale(ctx)
	if err != nil {
		logger.Log.Errorw("structure scheduler run failed", "error", err)
		return
	}
	if n > 0 {
		logger.Log.Infow("structure scheduler regenerated courses", "count", n)
	}
}

// InitializeStructureScheduler starts the cron job that keeps course
// structures current. The caller stops the returned scheduler on shutdown.
func InitializeStructureScheduler(g *structure.Generator, schedule string) (*cron.Cron, error) {
	logger.Log.Infow("initializing structure scheduler", "schedule", schedule)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		regenerateStructures(g, 10*time.Minute)
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
