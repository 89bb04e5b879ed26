package tasks

import (
	"context"
)

// newLiveFlushTask ingests live messages that waited longer than the flush
// interval without reaching the batch threshold.
func newLiveFlushTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "live_ingest_flush")

	return func(ctx context.Context) error {
		if n := deps.Live.FlushIfDue(ctx); n > 0 {
			log.InfoContext(ctx, "Flushed live messages", "chunks", n)
		}
		return nil
	}
}
