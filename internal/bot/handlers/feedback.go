package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/edgard/tipsai/internal/database"
)

// Callback data of the answer feedback buttons.
const (
	FeedbackPrefix       = "feedback_"
	callbackFeedbackGood = FeedbackPrefix + database.FeedbackPositive
	callbackFeedbackBad  = FeedbackPrefix + database.FeedbackNegative
	responsePreviewRunes = 120
)

type messageKey struct {
	chatID    int64
	messageID int
}

// FeedbackTracker remembers which question produced each answer message,
// since callback data is too small to carry it.
type FeedbackTracker struct {
	queries *expirable.LRU[messageKey, string]
}

// NewFeedbackTracker keeps up to size answers for ttl.
func NewFeedbackTracker(size int, ttl time.Duration) *FeedbackTracker {
	return &FeedbackTracker{queries: expirable.NewLRU[messageKey, string](size, nil, ttl)}
}

// Track records the question answered by message messageID in chatID.
func (t *FeedbackTracker) Track(chatID int64, messageID int, question string) {
	if t == nil {
		return
	}
	t.queries.Add(messageKey{chatID, messageID}, question)
}

// Take returns and forgets the question answered by a message.
func (t *FeedbackTracker) Take(chatID int64, messageID int) string {
	if t == nil {
		return ""
	}
	key := messageKey{chatID, messageID}
	q, ok := t.queries.Get(key)
	if !ok {
		return ""
	}
	t.queries.Remove(key)
	return q
}

// feedbackKeyboard renders the thumbs up and down buttons.
func feedbackKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "👍", CallbackData: callbackFeedbackGood},
			{Text: "👎", CallbackData: callbackFeedbackBad},
		}},
	}
}

// NewFeedbackHandler returns a handler for presses on the feedback buttons.
func NewFeedbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(feedbackHandler{deps}.handle)
}

type feedbackHandler struct {
	deps HandlerDeps
}

func (h feedbackHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "feedback")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}

	var value, ack string
	switch cq.Data {
	case callbackFeedbackGood:
		value, ack = database.FeedbackPositive, h.deps.Config.Messages.FeedbackPositive
	case callbackFeedbackBad:
		value, ack = database.FeedbackNegative, h.deps.Config.Messages.FeedbackNegative
	default:
		log.DebugContext(ctx, "Ignoring unknown callback data", "data", cq.Data)
		return
	}

	if _, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID, Text: ack}); err != nil {
		log.ErrorContext(ctx, "Failed to answer callback query", "error", err)
	}

	fb := &database.Feedback{
		UserID:    cq.From.ID,
		UserName:  cq.From.FirstName,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}

	if msg := cq.Message.Message; msg != nil {
		if _, err := api.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
		}); err != nil {
			log.DebugContext(ctx, "Could not remove feedback keyboard", "error", err)
		}
		fb.Query = h.deps.Feedback.Take(msg.Chat.ID, msg.ID)
		fb.ResponsePreview = truncateRunes(msg.Text, responsePreviewRunes)
	}

	if err := h.deps.Store.SaveFeedback(ctx, fb); err != nil {
		log.ErrorContext(ctx, "Failed to save feedback", "error", err, "user_id", fb.UserID)
		return
	}
	log.InfoContext(ctx, "Feedback recorded", "user_id", fb.UserID, "value", value, "query_preview", truncateRunes(fb.Query, 50))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
