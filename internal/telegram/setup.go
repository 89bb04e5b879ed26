// Package telegram builds the go-telegram bot and registers routed handlers
// with their middleware.
package telegram

import (
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
)

// Route binds one handler to an update pattern.
type Route struct {
	HandlerType bot.HandlerType
	Pattern     string
	MatchType   bot.MatchType
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
}

// Registrar is the subset of *bot.Bot used to register routes.
type Registrar interface {
	RegisterHandler(handlerType bot.HandlerType, pattern string, matchType bot.MatchType, f bot.HandlerFunc, m ...bot.Middleware) string
}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:8] + "..."
}

// applyMiddleware wraps a handler function with a slice of middleware.
// The first middleware in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers every named route with r, wrapping each handler
// in its own middleware.
func RegisterHandlers(r Registrar, logger *slog.Logger, routes map[string]Route) error {
	if r == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(routes) == 0 {
		log.Warn("No handlers provided for registration")
		return nil
	}

	log.Info("Registering Telegram handlers...", "count", len(routes))

	registered := 0
	for name, route := range routes {
		if route.Handler == nil {
			log.Warn("Skipping registration for nil handler", "name", name, "pattern", route.Pattern)
			continue
		}

		r.RegisterHandler(route.HandlerType, route.Pattern, route.MatchType, applyMiddleware(route.Handler, route.Middleware))
		registered++
		log.Debug("Registered handler", "name", name, "pattern", route.Pattern, "match_type", route.MatchType, "middleware_count", len(route.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", registered)
	return nil
}
