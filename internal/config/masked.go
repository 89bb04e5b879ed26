package config

import (
	"fmt"
	"strings"
)

// MaskSecret hides all but the first 8 and last 4 characters of a secret.
// Short secrets are fully masked.
func MaskSecret(value string) string {
	if len(value) <= 16 {
		return "****"
	}
	return value[:8] + "..." + value[len(value)-4:]
}

func maskedOrUnset(value string) string {
	if value == "" {
		return "(não configurado)"
	}
	return MaskSecret(value)
}

// Masked renders the configuration for the admin /config command with
// credentials masked.
func (c *Config) Masked() string {
	lines := []string{
		"Configuração atual do TipsAI",
		"",
		fmt.Sprintf("Modelo LLM: %s", c.Gemini.ModelName),
		fmt.Sprintf("Modelo de fallback: %s", orNone(c.Gemini.FallbackModelName)),
		fmt.Sprintf("Modelo de embeddings: %s (%d dims)", c.Gemini.EmbeddingModel, c.Gemini.EmbeddingDimension),
		fmt.Sprintf("Vector store: %s (%s)", c.VectorStore.Backend, c.VectorStore.Collection),
		fmt.Sprintf("Banco SQLite: %s", c.Database.Path),
		fmt.Sprintf("Caminho dos exports: %s", c.Ingest.ExportPath),
		fmt.Sprintf("Relevância mínima: %.2f | top_k: %d | cache: %s", c.RAG.MinScore, c.RAG.TopK, c.RAG.CacheTTL),
		fmt.Sprintf("Rerank: %t | Busca web: %t | Condensação: %t", c.RAG.Rerank, c.WebSearch.Enabled, c.Memory.Condensation),
		fmt.Sprintf("Rate limit: %d req / %s", c.RateLimit.MaxRequests, c.RateLimit.Window),
		fmt.Sprintf("Nível de log: %s", c.Logger.Level),
		fmt.Sprintf("API Key Gemini: %s", maskedOrUnset(c.Gemini.APIKey)),
		fmt.Sprintf("Token do bot: %s", maskedOrUnset(c.Telegram.Token)),
	}
	if c.VectorStore.PostgresURL != "" {
		lines = append(lines, fmt.Sprintf("Postgres: %s", MaskSecret(c.VectorStore.PostgresURL)))
	}
	return strings.Join(lines, "\n")
}

func orNone(value string) string {
	if value == "" {
		return "(nenhum)"
	}
	return value
}
