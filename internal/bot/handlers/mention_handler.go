package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tipsai/internal/ingest"
)

type mentionHandler struct {
	deps HandlerDeps
}

// NewMentionHandler creates the default handler for messages no command
// matched. Group text is captured for live ingestion, and messages that
// mention the bot or reply to it are answered like /tips.
func NewMentionHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(mentionHandler{deps}.handle)
}

func (h mentionHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "mention")

	msg := update.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update without text message", "update_id", update.ID)
		return
	}
	if h.isBot(msg.From) || isCommand(msg) {
		return
	}

	h.capture(ctx, msg)

	question, addressed := h.question(msg)
	if !addressed {
		return
	}
	if question == "" {
		log.InfoContext(ctx, "Mention received but prompt is empty", "chat_id", msg.Chat.ID)
		reply(ctx, api, h.deps, msg, withBotName(h.deps.Config.Messages.MentionNoPrompt, h.deps.Config.BotUsername()))
		return
	}
	answerQuestion(ctx, api, h.deps, msg, "mention", question)
}

// capture feeds group text into live ingestion.
func (h mentionHandler) capture(ctx context.Context, msg *models.Message) {
	if h.deps.Live == nil || msg.Chat.Type == models.ChatTypePrivate {
		return
	}
	if m, ok := ingest.FromTelegram(msg, h.deps.Location); ok {
		h.deps.Live.Capture(ctx, m)
	}
}

// question extracts what the user asks the bot. addressed is false when
// the message neither mentions the bot nor replies to it.
func (h mentionHandler) question(msg *models.Message) (question string, addressed bool) {
	username := h.deps.Config.BotUsername()
	if mentions(msg.Text, username) {
		return stripMention(msg.Text, username), true
	}
	if r := msg.ReplyToMessage; r != nil && r.From != nil && h.isBot(r.From) {
		return strings.TrimSpace(msg.Text), true
	}
	return "", false
}

func (h mentionHandler) isBot(u *models.User) bool {
	info := h.deps.Config.Telegram.BotInfo
	return info != nil && u.ID == info.ID
}

// isCommand reports whether msg starts with a bot command. Commands that
// reach the default handler are unknown ones.
func isCommand(msg *models.Message) bool {
	for _, e := range msg.Entities {
		if e.Type == models.MessageEntityTypeBotCommand && e.Offset == 0 {
			return true
		}
	}
	return strings.HasPrefix(msg.Text, "/")
}
