package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tipsai/internal/telegram"
)

// replyParams addresses a reply to msg. Group replies quote the original
// message, private ones do not. Forum topic replies stay in the topic.
func replyParams(msg *models.Message, text string) *bot.SendMessageParams {
	params := &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
	}
	if msg.IsTopicMessage {
		params.MessageThreadID = msg.MessageThreadID
	}
	if msg.Chat.Type != models.ChatTypePrivate {
		params.ReplyParameters = &models.ReplyParameters{
			MessageID:                msg.ID,
			AllowSendingWithoutReply: true,
		}
	}
	return params
}

// reply sends text in response to msg, logging failures.
func reply(ctx context.Context, api API, deps HandlerDeps, msg *models.Message, text string) *models.Message {
	sent, err := api.SendMessage(ctx, replyParams(msg, text))
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", msg.Chat.ID)
		return nil
	}
	return sent
}

// replyLong sends text split into Telegram-sized parts.
func replyLong(ctx context.Context, api API, deps HandlerDeps, msg *models.Message, text string) {
	for _, part := range telegram.SplitMessage(text, telegram.MaxMessageLength) {
		if reply(ctx, api, deps, msg, part) == nil {
			return
		}
	}
}

// commandArgs returns the text after the leading /command token, with
// whitespace collapsed.
func commandArgs(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}

// withBotName replaces the "@botname" placeholder in configured texts.
func withBotName(text, username string) string {
	if username == "" {
		return text
	}
	return strings.ReplaceAll(text, "@botname", "@"+username)
}

// stripMention removes every case-insensitive @username from text.
func stripMention(text, username string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta("@"+username))
	return strings.TrimSpace(re.ReplaceAllString(text, ""))
}

// mentions reports whether text addresses @username.
func mentions(text, username string) bool {
	if username == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(username))
}
