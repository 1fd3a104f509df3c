// Package jobs schedules the service's periodic background work.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"alcyxob/fitness-booking/internal/service"
)

// DefaultTimeout bounds a single cleanup run.
const DefaultTimeout = 4 * time.Minute

// Sweeper runs the daily booking cleanup.
type Sweeper interface {
	CleanupPastSessions(ctx context.Context) (*service.CleanupResult, error)
}

// NewCleanupScheduler registers the cleanup sweep on spec, evaluated in
// loc. The returned scheduler is not started. A run still in progress
// when the next one fires causes that firing to be skipped.
func NewCleanupScheduler(spec string, loc *time.Location, sweeper Sweeper, timeout time.Duration) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(spec, cleanupJob(sweeper, timeout)); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	log.Printf("INFO: Cleanup sweep scheduled with %q (%s)", spec, loc)
	return c, nil
}

func cleanupJob(sweeper Sweeper, timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		res, err := sweeper.CleanupPastSessions(ctx)
		if err != nil {
			log.Printf("ERROR: Scheduled cleanup failed: %v", err)
			return
		}
		if !res.Ran {
			log.Printf("INFO: Cleanup for %s already done", res.Date)
		}
	}
}
