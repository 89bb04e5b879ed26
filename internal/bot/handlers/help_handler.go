package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /ajuda command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(staticHandler{deps: deps, name: "help", text: deps.Config.Messages.Help}.handle)
}

// NewAboutHandler returns a handler for the /sobre command.
func NewAboutHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(staticHandler{deps: deps, name: "about", text: deps.Config.Messages.About}.handle)
}

// staticHandler replies with a fixed configured text.
type staticHandler struct {
	deps HandlerDeps
	name string
	text string
}

func (h staticHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)

	if update.Message == nil {
		log.WarnContext(ctx, "Handler received update with nil message", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling command", "chat_id", update.Message.Chat.ID)
	text := withBotName(h.text, h.deps.Config.BotUsername())
	reply(ctx, api, h.deps, update.Message, strings.TrimSpace(text))
}
