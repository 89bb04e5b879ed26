package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// HelpPrefix prefixes the callback data of the /start quick buttons.
const HelpPrefix = "help_"

var startButtons = [][]models.InlineKeyboardButton{
	{
		{Text: "Fazer uma pergunta", CallbackData: HelpPrefix + "tips"},
		{Text: "Buscar no grupo", CallbackData: HelpPrefix + "buscar"},
	},
	{
		{Text: "Ver ajuda", CallbackData: HelpPrefix + "ajuda"},
		{Text: "Status do bot", CallbackData: HelpPrefix + "status"},
	},
}

var startButtonTexts = map[string]string{
	HelpPrefix + "tips": "💬 Fazer uma pergunta\n\n" +
		"Use o comando /tips seguido da sua pergunta. Exemplo:\n" +
		"/tips o que é staking?\n\n" +
		"Você também pode me marcar no grupo com @botname e a pergunta, " +
		"ou simplesmente responder a uma mensagem minha.",
	HelpPrefix + "buscar": "🔍 Buscar no grupo\n\n" +
		"Use o comando /buscar seguido do termo. Exemplo:\n" +
		"/buscar CoinTech2U rendimento\n\n" +
		"Filtros opcionais:\n" +
		"• autor:Nome filtra por autor\n" +
		"• de:YYYY-MM-DD data inicial\n" +
		"• ate:YYYY-MM-DD data final\n\n" +
		"Exemplo completo:\n" +
		"/buscar autor:Renan bitcoin de:2024-08-01 ate:2024-09-30",
	HelpPrefix + "status": "⚙ Status do bot\n\n" +
		"Para ver o status atual, métricas de uso e tempo de atividade do TipsAI, use o comando:\n" +
		"/health",
}

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(startHandler{deps}.handle)
}

// startHandler processes the /start command using injected dependencies.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)

	params := replyParams(update.Message, withBotName(h.deps.Config.Messages.Welcome, h.deps.Config.BotUsername()))
	params.ReplyMarkup = &models.InlineKeyboardMarkup{InlineKeyboard: startButtons}
	if _, err := api.SendMessage(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", update.Message.Chat.ID)
	}
}

// NewStartButtonHandler returns a handler for presses on the /start quick
// buttons. The pressed message is replaced with the matching explanation.
func NewStartButtonHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(startButtonHandler{deps}.handle)
}

type startButtonHandler struct {
	deps HandlerDeps
}

func (h startButtonHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "start_button")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	if _, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID}); err != nil {
		log.ErrorContext(ctx, "Failed to answer callback query", "error", err)
	}

	text, ok := h.buttonText(cq.Data)
	if !ok || cq.Message.Message == nil {
		return
	}
	msg := cq.Message.Message
	if _, err := api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      withBotName(text, h.deps.Config.BotUsername()),
	}); err != nil {
		log.ErrorContext(ctx, "Failed to edit start message", "error", err, "chat_id", msg.Chat.ID)
	}
}

func (h startButtonHandler) buttonText(data string) (string, bool) {
	if data == HelpPrefix+"ajuda" {
		return h.deps.Config.Messages.Help, true
	}
	text, ok := startButtonTexts[data]
	return text, ok
}
