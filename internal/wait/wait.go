package wait

import (
	"context"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/logger"
)

// For blocks for d or until ctx is done, whichever comes first. It reports
// whether the full duration elapsed.
func For(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	logger.Debug().Dur("duration", d).Msg("Waiting")

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		logger.Debug().Msg("Wait interrupted")
		return false
	case <-timer.C:
		return true
	}
}
