package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewTipsHandler returns a handler for /tips <pergunta>.
func NewTipsHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(tipsHandler{deps}.handle)
}

type tipsHandler struct {
	deps HandlerDeps
}

func (h tipsHandler) handle(ctx context.Context, api API, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	question := commandArgs(msg.Text)
	if question == "" {
		reply(ctx, api, h.deps, msg, h.deps.Config.Messages.TipsUsage)
		return
	}
	answerQuestion(ctx, api, h.deps, msg, "tips", question)
}

// NewSummaryHandler returns a handler for /resumo. The summary is not
// attached to any user's conversation history.
func NewSummaryHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(summaryHandler{deps}.handle)
}

type summaryHandler struct {
	deps HandlerDeps
}

func (h summaryHandler) handle(ctx context.Context, api API, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	log := h.deps.Logger.With("handler", "resumo")

	if !allow(ctx, api, h.deps, msg, "resumo") {
		return
	}

	log.InfoContext(ctx, "Generating summary", "chat_id", msg.Chat.ID)
	start := time.Now()

	var (
		summary string
		err     error
	)
	withTyping(ctx, api, h.deps, msg, func() {
		summary, err = h.deps.Pipeline.Answer(ctx, h.deps.Config.Messages.SummaryQuestion, h.deps.Config.RAG.TopK, nil)
	})
	if err != nil {
		h.deps.Metrics.RecordError("resumo")
		log.ErrorContext(ctx, "Summary generation failed", "error", err)
		reply(ctx, api, h.deps, msg, h.deps.Config.Messages.SummaryError)
		return
	}

	h.deps.Metrics.RecordQuery("resumo", time.Since(start))
	replyLong(ctx, api, h.deps, msg, summary)
}
