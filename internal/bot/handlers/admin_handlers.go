package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const topAuthors = 5

// NewReindexHandler returns a handler for the admin /reindex command. It
// clears the processed IDs, empties the collection and ingests the export
// again.
func NewReindexHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(reindexHandler{deps}.handle)
}

type reindexHandler struct {
	deps HandlerDeps
}

func (h reindexHandler) handle(ctx context.Context, api API, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	log := h.deps.Logger.With("handler", "reindex")

	reply(ctx, api, h.deps, msg, h.deps.Config.Messages.ReindexStarted)

	dir := h.deps.Config.Ingest.ExportPath
	log.InfoContext(ctx, "Admin requested reindex", "chat_id", msg.Chat.ID, "export_path", dir)
	start := time.Now()

	res, err := h.deps.Reindexer.Reindex(ctx, dir)
	if err != nil {
		log.ErrorContext(ctx, "Reindex failed", "error", err, "duration", time.Since(start))
		reply(ctx, api, h.deps, msg, h.deps.Config.Messages.ReindexFailed)
		return
	}

	log.InfoContext(ctx, "Reindex complete", "messages", res.New, "chunks", res.Chunks, "pruned", res.Pruned, "duration", time.Since(start))
	reply(ctx, api, h.deps, msg, fmt.Sprintf(h.deps.Config.Messages.ReindexDone, res.New, res.Chunks))
}

// NewStatsHandler returns a handler for the admin /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(statsHandler{deps}.handle)
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) handle(ctx context.Context, api API, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	text, err := h.render(ctx)
	if err != nil {
		h.deps.Logger.With("handler", "stats").ErrorContext(ctx, "Failed to gather stats", "error", err)
		reply(ctx, api, h.deps, msg, h.deps.Config.Messages.StatsError)
		return
	}
	reply(ctx, api, h.deps, msg, text)
}

func (h statsHandler) render(ctx context.Context) (string, error) {
	chunks, err := h.deps.Chunks.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count chunks: %w", err)
	}
	processed, err := h.deps.Store.CountProcessed(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count processed messages: %w", err)
	}
	size, err := h.deps.Store.SizeBytes(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read database size: %w", err)
	}
	authors, err := h.deps.Chunks.AuthorStats(ctx, topAuthors)
	if err != nil {
		return "", fmt.Errorf("failed to rank authors: %w", err)
	}
	feedback, err := h.deps.Store.FeedbackStats(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read feedback stats: %w", err)
	}

	lines := []string{
		"Estatísticas do TipsAI",
		"",
		fmt.Sprintf("Chunks no índice: %d", chunks),
		fmt.Sprintf("Mensagens processadas: %d", processed),
		fmt.Sprintf("Tamanho do banco: %s", FormatSize(size)),
		fmt.Sprintf("Feedback: %d (👍 %d / 👎 %d)", feedback.Total(), feedback.Positive, feedback.Negative),
	}
	if len(authors) > 0 {
		lines = append(lines, "", fmt.Sprintf("Top %d autores por mensagens:", topAuthors))
		for i, a := range authors {
			lines = append(lines, fmt.Sprintf("  %d. %s — %d msgs", i+1, a.Author, a.Messages))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(n int64) string {
	const unit = 1024
	switch {
	case n < unit:
		return fmt.Sprintf("%d B", n)
	case n < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(n)/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", float64(n)/(unit*unit))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(unit*unit*unit))
	}
}

// NewConfigHandler returns a handler for the admin /config command.
func NewConfigHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(func(ctx context.Context, api API, update *models.Update) {
		if update.Message == nil {
			return
		}
		reply(ctx, api, deps, update.Message, deps.Config.Masked())
	})
}
