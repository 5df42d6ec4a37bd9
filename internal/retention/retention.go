// Package retention purges read notifications past their keep period on
// a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/DarthNec/Fonana-sub001/pkg/config"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
)

// Purger removes read notifications created before cutoff, at most
// batchSize per call, reporting how many were removed.
type Purger interface {
	PurgeRead(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig, p Purger) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	period, err := cfg.PeriodDuration()
	if err != nil {
		logger.Error("retention_invalid_period", "period", cfg.Period, "error", err)
		return nil, err
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", cfg.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, period, cfg.BatchSize, p)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string, period time.Duration, batchSize int, p Purger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if _, err := RunOnce(ctx, period, batchSize, p); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce purges in batches until the store reports nothing left to
// remove. Exposed so an admin trigger can run retention on demand.
func RunOnce(ctx context.Context, period time.Duration, batchSize int, p Purger) (int, error) {
	cutoff := time.Now().UTC().Add(-period)
	total := 0
	for {
		n, err := p.PurgeRead(ctx, cutoff, batchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
	if total > 0 {
		logger.Info("retention_run_complete", "removed", total, "cutoff", cutoff.Format(time.RFC3339))
	}
	return total, nil
}
