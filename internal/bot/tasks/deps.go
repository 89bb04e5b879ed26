// Package tasks implements the scheduled jobs of the bot: database
// maintenance, periodic live ingestion flushes and the daily summary.
package tasks

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tipsai/internal/config"
	"github.com/edgard/tipsai/internal/database"
)

// Answerer generates an answer from the indexed history.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int, userID *int64) (string, error)
}

// Flusher ingests buffered live messages once they are old enough.
type Flusher interface {
	FlushIfDue(ctx context.Context) int
}

// Sender posts messages to Telegram.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TaskDeps contains all dependencies required by scheduled tasks. Pipeline,
// Live and Sender may be nil; tasks needing them are then not registered.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Config   *config.Config
	Pipeline Answerer
	Live     Flusher
	Sender   Sender
}
