package rag

import (
	"fmt"
	"strings"
)

const (
	webBlockLabel = "[Dados atuais da web]"

	// NoHistoryNote replaces the context when nothing relevant was retrieved.
	NoHistoryNote = "Nenhuma mensagem relevante foi encontrada no histórico do grupo. " +
		"Responda com base no seu conhecimento geral, mas deixe claro que " +
		"não encontrou referências específicas do grupo."
)

// FormatExcerpts renders chunks as numbered excerpts with authors and period.
func FormatExcerpts(chunks []ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		header := fmt.Sprintf("[Trecho %d] Autores: %s | Período: %s — %s",
			i+1, strings.Join(c.Metadata.Authors, ", "), c.Metadata.StartTime, c.Metadata.EndTime)
		parts = append(parts, header+"\n"+c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// AssembleContext joins group excerpts and the web block. When both are
// empty it returns NoHistoryNote.
func AssembleContext(chunks []ScoredChunk, web string) string {
	var blocks []string
	if len(chunks) > 0 {
		blocks = append(blocks, FormatExcerpts(chunks))
	}
	if web = strings.TrimSpace(web); web != "" {
		blocks = append(blocks, webBlockLabel+"\n"+web)
	}
	if len(blocks) == 0 {
		return NoHistoryNote
	}
	return strings.Join(blocks, "\n\n")
}
