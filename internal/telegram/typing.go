package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TypingInterval is how often the typing action is refreshed. Telegram
// clears it after about five seconds.
const TypingInterval = 4 * time.Second

// ChatActionSender is the subset of *bot.Bot used for typing indicators.
type ChatActionSender interface {
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// KeepTyping shows the typing indicator in chatID until the returned stop
// function is called or ctx is done. The first failed send ends the loop.
func KeepTyping(ctx context.Context, s ChatActionSender, chatID int64, threadID int, interval time.Duration, log *slog.Logger) (stop func()) {
	if interval <= 0 {
		interval = TypingInterval
	}
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			_, err := s.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID:          chatID,
				MessageThreadID: threadID,
				Action:          models.ChatActionTyping,
			})
			if err != nil {
				if ctx.Err() == nil && log != nil {
					log.DebugContext(ctx, "Typing action failed", "chat_id", chatID, "error", err)
				}
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
