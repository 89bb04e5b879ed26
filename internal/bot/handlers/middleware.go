// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that lets a command through only for chat
// administrators. Private chats are always allowed, and so is the
// configured admin user.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if !requireAdmin(ctx, bot, deps, update) {
				return
			}
			next(ctx, bot, update)
		}
	}
}

// requireAdmin reports whether the sender of update may run an admin
// command, telling them why not otherwise.
func requireAdmin(ctx context.Context, api API, deps HandlerDeps, update *models.Update) bool {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return false
	}
	if msg.Chat.Type == models.ChatTypePrivate {
		return true
	}

	userID := msg.From.ID
	if adminID := deps.Config.Telegram.AdminUserID; adminID != 0 && userID == adminID {
		return true
	}

	log := deps.Logger.With("middleware", "AdminOnly")
	member, err := api.GetChatMember(ctx, &tgbot.GetChatMemberParams{ChatID: msg.Chat.ID, UserID: userID})
	if err != nil {
		log.ErrorContext(ctx, "Failed to check admin status", "error", err, "user_id", userID, "chat_id", msg.Chat.ID)
		reply(ctx, api, deps, msg, deps.Config.Messages.AdminCheckFailed)
		return false
	}

	switch member.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator:
		return true
	}

	log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", msg.Chat.ID, "status", member.Type)
	reply(ctx, api, deps, msg, deps.Config.Messages.NotAuthorized)
	return false
}
