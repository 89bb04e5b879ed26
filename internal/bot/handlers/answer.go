package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/tipsai/internal/rag"
	"github.com/edgard/tipsai/internal/ratelimit"
	"github.com/edgard/tipsai/internal/telegram"
)

// allow applies the per-user rate limit and tells the user how long to
// wait when denied.
func allow(ctx context.Context, api API, deps HandlerDeps, msg *models.Message, command string) bool {
	if deps.Limiter == nil || msg.From == nil {
		return true
	}
	err := deps.Limiter.Check(msg.From.ID)
	var rle *ratelimit.RateLimitError
	if !errors.As(err, &rle) {
		return true
	}
	deps.Logger.InfoContext(ctx, "Rate limit hit", "command", command, "user_id", msg.From.ID, "wait", rle.Wait)
	deps.Metrics.RecordRateLimited()
	reply(ctx, api, deps, msg, fmt.Sprintf(deps.Config.Messages.RateLimited, rle.WaitSeconds()))
	return false
}

// withTyping runs fn while the typing indicator is shown in msg's chat.
func withTyping(ctx context.Context, api API, deps HandlerDeps, msg *models.Message, fn func()) {
	threadID := 0
	if msg.IsTopicMessage {
		threadID = msg.MessageThreadID
	}
	stop := telegram.KeepTyping(ctx, api, msg.Chat.ID, threadID, telegram.TypingInterval, deps.Logger)
	defer stop()
	fn()
}

// answerQuestion runs question through the pipeline on behalf of msg's
// sender and replies with feedback buttons.
func answerQuestion(ctx context.Context, api API, deps HandlerDeps, msg *models.Message, command, question string) {
	log := deps.Logger.With("handler", command)

	if !allow(ctx, api, deps, msg, command) {
		return
	}

	var (
		uid    int64
		userID *int64
	)
	if msg.From != nil {
		uid = msg.From.ID
		userID = &uid
	}

	log.InfoContext(ctx, "Answering question", "chat_id", msg.Chat.ID, "user_id", uid, "question_chars", len(question))
	start := time.Now()

	var (
		answer string
		err    error
	)
	withTyping(ctx, api, deps, msg, func() {
		answer, err = deps.Pipeline.Answer(ctx, question, deps.Config.RAG.TopK, userID)
	})
	if err != nil {
		deps.Metrics.RecordError(command)
		var genErr *rag.GenerationError
		if errors.As(err, &genErr) {
			log.ErrorContext(ctx, "Answer generation failed", "model", genErr.Model, "error", err)
			reply(ctx, api, deps, msg, deps.Config.Messages.AnswerError)
			return
		}
		log.ErrorContext(ctx, "Unexpected error answering question", "error", err)
		reply(ctx, api, deps, msg, deps.Config.Messages.GeneralError)
		return
	}

	elapsed := time.Since(start)
	deps.Metrics.RecordQuery(command, elapsed)
	log.InfoContext(ctx, "Answer ready", "duration", elapsed, "answer_chars", len(answer))

	sendWithFeedback(ctx, api, deps, msg, answer, question)
}

// sendWithFeedback replies with answer. Answers that fit in one message
// carry the feedback buttons; longer ones are split and sent without them.
func sendWithFeedback(ctx context.Context, api API, deps HandlerDeps, msg *models.Message, answer, question string) {
	if len([]rune(answer)) > telegram.MaxMessageLength {
		replyLong(ctx, api, deps, msg, answer)
		return
	}

	params := replyParams(msg, answer)
	params.ReplyMarkup = feedbackKeyboard()
	sent, err := api.SendMessage(ctx, params)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send answer", "error", err, "chat_id", msg.Chat.ID)
		return
	}
	deps.Feedback.Track(sent.Chat.ID, sent.ID, question)
}
