// Package bot wires the Telegram listener, the scheduler and the HTTP
// server together and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Listener receives Telegram updates until ctx is cancelled.
type Listener interface {
	Start(ctx context.Context)
}

// Runner is a component serving until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Flusher ingests whatever live messages are still buffered.
type Flusher interface {
	Flush(ctx context.Context) int
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	listener  Listener
	scheduler *Scheduler
	http      Runner
	live      Flusher
}

// NewBot creates the orchestrator. http and live may be nil.
func NewBot(logger *slog.Logger, listener Listener, scheduler *Scheduler, http Runner, live Flusher) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		listener:  listener,
		scheduler: scheduler,
		http:      http,
		live:      live,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Buffered live messages are flushed before returning.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.http != nil {
		g.Go(func() error {
			return b.http.Run(gCtx)
		})
	}

	err := g.Wait()

	if b.live != nil {
		// The run context is done; the final flush gets its own.
		if n := b.live.Flush(context.WithoutCancel(ctx)); n > 0 {
			b.logger.Info("Flushed buffered live messages on shutdown", "chunks", n)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
