package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewResetHandler returns a handler for /reset, which clears the caller's
// conversation history.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(resetHandler{deps}.handle)
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) handle(ctx context.Context, api API, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	h.deps.Logger.With("handler", "reset").InfoContext(ctx, "Clearing conversation history", "user_id", msg.From.ID)
	h.deps.Memory.Clear(msg.From.ID)
	reply(ctx, api, h.deps, msg, h.deps.Config.Messages.HistoryReset)
}
