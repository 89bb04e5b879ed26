package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tipsai/internal/rag"
)

const (
	filterOnlyQuery     = "mensagens do grupo"
	searchPreviewRunes  = 200
	searchDatePrefixLen = 10
)

// NewSearchHandler returns a handler for /buscar <termo> with optional
// autor:, de: and ate: filters.
func NewSearchHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(searchHandler{deps}.handle)
}

type searchHandler struct {
	deps HandlerDeps
}

func (h searchHandler) handle(ctx context.Context, api API, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	log := h.deps.Logger.With("handler", "buscar")

	raw := commandArgs(msg.Text)
	parsed := rag.ParseSearchQuery(raw)
	if parsed.Text == "" && !parsed.HasFilters() {
		reply(ctx, api, h.deps, msg, h.deps.Config.Messages.SearchUsage)
		return
	}

	query := parsed.Text
	if query == "" {
		query = filterOnlyQuery
	}

	if !allow(ctx, api, h.deps, msg, "buscar") {
		return
	}

	log.InfoContext(ctx, "Searching history", "query", query, "author", parsed.Author, "date_from", parsed.DateFrom, "date_to", parsed.DateTo)
	start := time.Now()

	var (
		results []rag.ScoredChunk
		err     error
	)
	withTyping(ctx, api, h.deps, msg, func() {
		results, err = h.deps.Pipeline.Search(ctx, query, h.deps.Config.RAG.SearchTopK, parsed.Filter())
	})
	if err != nil && !errors.Is(err, rag.ErrRetrievalUnavailable) {
		h.deps.Metrics.RecordError("buscar")
		log.ErrorContext(ctx, "Search failed", "error", err)
		reply(ctx, api, h.deps, msg, h.deps.Config.Messages.SearchError)
		return
	}
	if err != nil {
		log.WarnContext(ctx, "Vector store unavailable, reporting no results", "error", err)
	}
	h.deps.Metrics.RecordQuery("buscar", time.Since(start))

	if len(results) == 0 {
		reply(ctx, api, h.deps, msg, h.deps.Config.Messages.SearchNoResults)
		return
	}
	replyLong(ctx, api, h.deps, msg, FormatSearchResults(query, parsed, results))
}

// FormatSearchResults renders search hits with their score, authors, date
// and a text preview.
func FormatSearchResults(query string, parsed rag.ParsedQuery, results []rag.ScoredChunk) string {
	header := "🔍 Resultados para: " + query
	var filters []string
	if parsed.Author != "" {
		filters = append(filters, "autor="+parsed.Author)
	}
	if parsed.DateFrom != "" {
		filters = append(filters, "de="+parsed.DateFrom)
	}
	if parsed.DateTo != "" {
		filters = append(filters, "ate="+parsed.DateTo)
	}
	if len(filters) > 0 {
		header += " [" + strings.Join(filters, ", ") + "]"
	}

	parts := []string{header + "\n"}
	for i, r := range results {
		preview := truncateRunes(r.Text, searchPreviewRunes)
		if preview != r.Text {
			preview += "..."
		}
		date := r.Metadata.StartTime
		if len(date) > searchDatePrefixLen {
			date = date[:searchDatePrefixLen]
		}
		parts = append(parts, fmt.Sprintf("%d. [%d%%] %s (%s):\n%s\n",
			i+1, int(r.Score*100), strings.Join(r.Metadata.Authors, ", "), date, preview))
	}
	return strings.Join(parts, "\n")
}
