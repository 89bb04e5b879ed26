package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHealthHandler returns a handler for /health.
func NewHealthHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(healthHandler{deps}.handle)
}

type healthHandler struct {
	deps HandlerDeps
}

func (h healthHandler) handle(ctx context.Context, api API, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	log := h.deps.Logger.With("handler", "health")

	chunks := "indisponível"
	if h.deps.Chunks != nil {
		if n, err := h.deps.Chunks.Count(ctx); err != nil {
			log.WarnContext(ctx, "Could not count chunks", "error", err)
		} else {
			chunks = formatThousands(n) + " chunks"
		}
	}

	snap := h.deps.Metrics.Snapshot()
	text := strings.Join([]string{
		"🏥 Status do TipsAI",
		"",
		"⏱ Uptime: " + snap.UptimeText,
		fmt.Sprintf("📊 Consultas: %d", snap.TotalQueries),
		fmt.Sprintf("⚡ Latência média: %.1fs", snap.AverageSeconds),
		fmt.Sprintf("❌ Erros: %d", snap.Errors),
		"💾 Índice: " + chunks,
		"🧠 Modelo: " + h.deps.Config.Gemini.ModelName,
	}, "\n")
	reply(ctx, api, h.deps, msg, text)
}

// formatThousands groups digits with dots, pt-BR style.
func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
