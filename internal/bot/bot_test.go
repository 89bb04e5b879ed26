package bot

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/tipsai/internal/bot/tasks"
	"github.com/edgard/tipsai/internal/config"
	"github.com/edgard/tipsai/internal/logger"
)

type blockingListener struct{}

func (blockingListener) Start(ctx context.Context) { <-ctx.Done() }

type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context) error { return r.err }

type countingFlusher struct{ calls atomic.Int32 }

func (f *countingFlusher) Flush(context.Context) int {
	f.calls.Add(1)
	return 2
}

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) *Scheduler {
	t.Helper()
	s, err := NewScheduler(logger.Discard(), cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	return s
}

func TestBotRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	live := &countingFlusher{}
	b := NewBot(logger.Discard(), blockingListener{}, newTestScheduler(t, nil, nil), nil, live)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if live.calls.Load() != 1 {
		t.Errorf("live flushed %d times, want 1", live.calls.Load())
	}
}

func TestBotRunReturnsComponentError(t *testing.T) {
	t.Parallel()

	boom := errors.New("address in use")
	b := NewBot(logger.Discard(), blockingListener{}, newTestScheduler(t, nil, nil), failingRunner{boom}, nil)

	if err := b.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestSchedulerRegistersEnabledTasks(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	cfg := &config.SchedulerConfig{
		Timezone: "America/Sao_Paulo",
		Tasks: map[string]config.TaskConfig{
			"sql_maintenance":   {Enabled: true, Schedule: "0 0 3 * * *"},
			"daily_summary":     {Enabled: false, Schedule: "0 0 21 * * *"},
			"unknown_task":      {Enabled: true, Schedule: "0 * * * * *"},
			"live_ingest_flush": {Enabled: true, Schedule: "not a cron"},
		},
	}
	s := newTestScheduler(t, cfg, map[string]tasks.ScheduledTaskFunc{
		"sql_maintenance":   noop,
		"daily_summary":     noop,
		"live_ingest_flush": noop,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if err := s.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	if got := s.Jobs(); !slices.Equal(got, []string{"sql_maintenance"}) {
		t.Errorf("Jobs() = %v, want [sql_maintenance]", got)
	}
}

func TestNewSchedulerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	if _, err := NewScheduler(logger.Discard(), &config.SchedulerConfig{Timezone: "Mars/Olympus"}, nil); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
