package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/edgard/tipsai/internal/gemini"
)

const (
	maxRerankScore    = 10
	rerankExcerptSize = 500
	rerankMaxTokens   = 64
)

const rerankSystemInstruction = "Você avalia a relevância de trechos de conversa para uma pergunta. " +
	"Responda somente com as notas, na ordem dos trechos."

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

var errRerankMalformed = errors.New("malformed rerank response")

func rerankPrompt(question string, chunks []ScoredChunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pergunta: %s\n\n", question)
	for i, c := range chunks {
		text := []rune(c.Text)
		if len(text) > rerankExcerptSize {
			text = text[:rerankExcerptSize]
		}
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, string(text))
	}
	fmt.Fprintf(&sb, "Dê uma nota inteira de 0 a %d para a relevância de cada um dos %d trechos, "+
		"separadas por vírgula.", maxRerankScore, len(chunks))
	return sb.String()
}

// parseScores reads exactly want integer scores in [0, maxRerankScore] from
// s. Fractional scores make the reply malformed.
func parseScores(s string, want int) ([]float64, error) {
	matches := scorePattern.FindAllString(s, -1)
	if len(matches) != want {
		return nil, fmt.Errorf("%w: got %d scores, want %d", errRerankMalformed, len(matches), want)
	}
	scores := make([]float64, want)
	for i, m := range matches {
		v, err := strconv.Atoi(m)
		if err != nil || v > maxRerankScore {
			return nil, fmt.Errorf("%w: score %q is not an integer in range", errRerankMalformed, m)
		}
		scores[i] = float64(v)
	}
	return scores, nil
}

// rerank orders chunks by LLM-assigned relevance. Any failure returns the
// input order unchanged.
func (p *Pipeline) rerank(ctx context.Context, question string, chunks []ScoredChunk) []ScoredChunk {
	scores, err := p.scoreChunks(ctx, question, chunks)
	if err != nil {
		p.log.WarnContext(ctx, "Rerank failed, keeping retrieval order", "error", err)
		p.metrics.RecordRerankFallback()
		return chunks
	}

	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	ranked := make([]ScoredChunk, len(chunks))
	for i, idx := range order {
		ranked[i] = chunks[idx]
	}
	p.log.DebugContext(ctx, "Reranked candidates", "count", len(chunks), "scores", scores)
	return ranked
}

func (p *Pipeline) scoreChunks(ctx context.Context, question string, chunks []ScoredChunk) ([]float64, error) {
	reply, err := p.generator.Generate(ctx, gemini.Request{
		System:    rerankSystemInstruction,
		Message:   rerankPrompt(question, chunks),
		MaxTokens: rerankMaxTokens,
		Raw:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank generation failed: %w", err)
	}
	return parseScores(reply, len(chunks))
}
