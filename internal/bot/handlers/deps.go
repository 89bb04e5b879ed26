package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tipsai/internal/chat"
	"github.com/edgard/tipsai/internal/config"
	"github.com/edgard/tipsai/internal/database"
	"github.com/edgard/tipsai/internal/ingest"
	"github.com/edgard/tipsai/internal/metrics"
	"github.com/edgard/tipsai/internal/rag"
	"github.com/edgard/tipsai/internal/ratelimit"
	"github.com/edgard/tipsai/internal/vectorstore"
)

// Answerer is the retrieval pipeline as seen by handlers.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int, userID *int64) (string, error)
	Search(ctx context.Context, query string, topK int, filter vectorstore.Filter) ([]rag.ScoredChunk, error)
}

// HistoryClearer forgets a user's conversation.
type HistoryClearer interface {
	Clear(userID int64)
}

// Reindexer rebuilds the index from the configured export.
type Reindexer interface {
	Reindex(ctx context.Context, dir string) (ingest.Result, error)
}

// Capturer buffers group messages for live ingestion.
type Capturer interface {
	Capture(ctx context.Context, msg chat.Message)
}

// ChunkStats reports on the vector collection.
type ChunkStats interface {
	Count(ctx context.Context) (int, error)
	AuthorStats(ctx context.Context, limit int) ([]vectorstore.AuthorCount, error)
}

// HandlerDeps provides dependencies for Telegram command handlers. Live
// may be nil when live ingestion is disabled.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Pipeline  Answerer
	Limiter   *ratelimit.Limiter
	Memory    HistoryClearer
	Metrics   *metrics.Metrics
	Reindexer Reindexer
	Live      Capturer
	Chunks    ChunkStats
	Feedback  *FeedbackTracker
	Location  *time.Location
}

// API is the subset of *bot.Bot used by handlers.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
}

type handleFunc func(ctx context.Context, api API, update *models.Update)

// adapt turns a handler written against API into a bot.HandlerFunc.
func adapt(h handleFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h(ctx, b, update)
	}
}
