package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"

	"github.com/edgard/tipsai/internal/telegram"
)

// newDailySummaryTask posts a summary of recent discussions to the
// configured chat. It does nothing while no chat is configured.
func newDailySummaryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "daily_summary")

	return func(ctx context.Context) error {
		cfg := deps.Config.Summary
		if cfg.ChatID == 0 {
			log.DebugContext(ctx, "No summary chat configured, skipping")
			return nil
		}

		start := time.Now()
		summary, err := deps.Pipeline.Answer(ctx, cfg.Prompt, deps.Config.RAG.TopK, nil)
		if err != nil {
			return fmt.Errorf("failed to generate daily summary: %w", err)
		}

		parts := telegram.SplitMessage(summary, telegram.MaxMessageLength)
		for i, part := range parts {
			if _, err := deps.Sender.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:          cfg.ChatID,
				MessageThreadID: cfg.ThreadID,
				Text:            part,
			}); err != nil {
				return fmt.Errorf("failed to send summary part %d/%d: %w", i+1, len(parts), err)
			}
		}

		log.InfoContext(ctx, "Daily summary posted", "chat_id", cfg.ChatID, "parts", len(parts), "duration", time.Since(start))
		return nil
	}
}
