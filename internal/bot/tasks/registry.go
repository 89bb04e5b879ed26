package tasks

import (
	"context"
)

// ScheduledTaskFunc defines the signature of scheduled tasks. The context
// provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the tasks available with deps, keyed by the name
// used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		"sql_maintenance": newSQLMaintenanceTask(deps),
	}
	if deps.Live != nil {
		tasks["live_ingest_flush"] = newLiveFlushTask(deps)
	}
	if deps.Pipeline != nil && deps.Sender != nil {
		tasks["daily_summary"] = newDailySummaryTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
