package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/tipsai/internal/telegram"
)

func command(pattern string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) telegram.Route {
	return telegram.Route{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     pattern,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Handler:     h,
		Middleware:  mw,
	}
}

func callback(prefix string, h tgbot.HandlerFunc) telegram.Route {
	return telegram.Route{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     prefix,
		MatchType:   tgbot.MatchTypePrefix,
		Handler:     h,
	}
}

// RegisterAllCommands initializes and returns every command and callback
// route. Mentions, replies and live capture go through the default handler
// built by NewMentionHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.Route {
	admin := AdminOnly(deps)

	return map[string]telegram.Route{
		"/start":   command("start", NewStartHandler(deps)),
		"/tips":    command("tips", NewTipsHandler(deps)),
		"/buscar":  command("buscar", NewSearchHandler(deps)),
		"/resumo":  command("resumo", NewSummaryHandler(deps)),
		"/sobre":   command("sobre", NewAboutHandler(deps)),
		"/ajuda":   command("ajuda", NewHelpHandler(deps)),
		"/health":  command("health", NewHealthHandler(deps)),
		"/reset":   command("reset", NewResetHandler(deps)),
		"/reindex": command("reindex", NewReindexHandler(deps), admin),
		"/stats":   command("stats", NewStatsHandler(deps), admin),
		"/config":  command("config", NewConfigHandler(deps), admin),

		"help_buttons": callback(HelpPrefix, NewStartButtonHandler(deps)),
		"feedback":     callback(FeedbackPrefix, NewFeedbackHandler(deps)),
	}
}
