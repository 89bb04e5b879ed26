// Package rag answers questions from the group history: it embeds the
// question, retrieves and filters chunks, optionally reranks them and adds
// web results, then generates a reply with the user's conversation history.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/tipsai/internal/chat"
	"github.com/edgard/tipsai/internal/gemini"
	"github.com/edgard/tipsai/internal/logger"
	"github.com/edgard/tipsai/internal/metrics"
	"github.com/edgard/tipsai/internal/vectorstore"
	"github.com/edgard/tipsai/internal/websearch"
)

// Embedder turns a query into a normalized vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text. Transient failures wrap gemini.ErrTransient.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// Index is the search side of the vector store.
type Index interface {
	Search(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Hit, error)
}

// History is the per-user conversation memory.
type History interface {
	History(userID int64) []chat.Turn
	Append(ctx context.Context, userID int64, role chat.Role, text string)
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	ID       string
	Text     string
	Metadata vectorstore.Metadata
	Score    float64
}

// Options tunes the pipeline.
type Options struct {
	TopK          int
	MinScore      float64
	Rerank        bool
	RerankMinimum int
	CacheSize     int
	CacheTTL      time.Duration
	MaxTokens     int32
	WebMaxResults int
	// Model is reported in errors; FallbackModel is retried on transient
	// failures when set and different from Model.
	Model         string
	FallbackModel string
}

// Deps are the collaborators of the pipeline. Web, Memory, Metrics and
// Clock are optional.
type Deps struct {
	Index     Index
	Embedder  Embedder
	Generator Generator
	Memory    History
	Web       websearch.Searcher
	Metrics   *metrics.Metrics
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	index     Index
	embedder  Embedder
	generator Generator
	memory    History
	web       websearch.Searcher
	metrics   *metrics.Metrics
	cache     *Cache
	log       *slog.Logger
	opts      Options
}

// New builds a pipeline.
func New(deps Deps, opts Options) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.RerankMinimum <= 0 {
		opts.RerankMinimum = 3
	}
	return &Pipeline{
		index:     deps.Index,
		embedder:  deps.Embedder,
		generator: deps.Generator,
		memory:    deps.Memory,
		web:       deps.Web,
		metrics:   deps.Metrics,
		cache:     NewCache(opts.CacheSize, opts.CacheTTL, deps.Clock),
		log:       log.With("component", "rag_pipeline"),
		opts:      opts,
	}
}

// Search embeds query and returns up to topK chunks matching filter, best
// first. Store failures wrap ErrRetrievalUnavailable.
func (p *Pipeline) Search(ctx context.Context, query string, topK int, filter vectorstore.Filter) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = p.opts.TopK
	}
	vector, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := p.index.Search(ctx, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}

	chunks := make([]ScoredChunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, ScoredChunk{ID: h.ID, Text: h.Text, Metadata: h.Metadata, Score: h.Score()})
	}
	p.log.DebugContext(ctx, "Search completed", "results", len(chunks), "top_k", topK, "filter", filter.String())
	return chunks, nil
}

// Answer runs the full question-answering flow. userID, when set, selects
// the conversation history that is read and extended. Only generation
// failures are returned, as *GenerationError.
func (p *Pipeline) Answer(ctx context.Context, question string, topK int, userID *int64) (string, error) {
	if cached, ok := p.cache.Get(question); ok {
		p.metrics.CacheHit()
		p.log.DebugContext(ctx, "Answer served from cache")
		p.remember(ctx, userID, question, cached)
		return cached, nil
	}
	p.metrics.CacheMiss()

	chunks := p.retrieve(ctx, question, topK)

	var web string
	if p.web != nil && websearch.NeedsRealtime(question) {
		web = websearch.Lookup(ctx, p.web, question, p.opts.WebMaxResults, p.log)
	}

	if p.opts.Rerank && len(chunks) >= p.opts.RerankMinimum {
		chunks = p.rerank(ctx, question, chunks)
	}

	req := gemini.Request{
		Message:   question,
		Context:   AssembleContext(chunks, web),
		MaxTokens: p.opts.MaxTokens,
	}
	if userID != nil && p.memory != nil {
		req.History = p.memory.History(*userID)
	}

	answer, err := p.generate(ctx, req)
	if err != nil {
		return "", err
	}

	p.cache.Put(question, answer)
	p.remember(ctx, userID, question, answer)
	p.log.InfoContext(ctx, "Answer generated",
		"chunks", len(chunks), "web", web != "", "history_turns", len(req.History))
	return answer, nil
}

// retrieve searches and applies the relevance floor. Failures degrade to no
// results.
func (p *Pipeline) retrieve(ctx context.Context, question string, topK int) []ScoredChunk {
	chunks, err := p.Search(ctx, question, topK, vectorstore.Filter{})
	if err != nil {
		p.log.WarnContext(ctx, "Retrieval failed, answering without group context", "error", err)
		p.metrics.RecordRetrievalDegraded()
		return nil
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if c.Score >= p.opts.MinScore {
			kept = append(kept, c)
		}
	}
	if dropped := len(chunks) - len(kept); dropped > 0 {
		p.log.DebugContext(ctx, "Dropped chunks below relevance floor", "dropped", dropped, "min_score", p.opts.MinScore)
	}
	return kept
}

func (p *Pipeline) generate(ctx context.Context, req gemini.Request) (string, error) {
	answer, err := p.generator.Generate(ctx, req)
	if err == nil {
		return answer, nil
	}

	fallback := p.opts.FallbackModel
	if !errors.Is(err, gemini.ErrTransient) || fallback == "" || fallback == p.opts.Model {
		return "", &GenerationError{Model: p.opts.Model, Err: err}
	}

	p.log.WarnContext(ctx, "Primary model failed, retrying on fallback", "model", p.opts.Model, "fallback_model", fallback, "error", err)
	p.metrics.RecordGenerationFallback()
	req.Model = fallback
	answer, err = p.generator.Generate(ctx, req)
	if err != nil {
		return "", &GenerationError{Model: fallback, Err: err}
	}
	return answer, nil
}

func (p *Pipeline) remember(ctx context.Context, userID *int64, question, answer string) {
	if userID == nil || p.memory == nil {
		return
	}
	p.memory.Append(ctx, *userID, chat.RoleUser, question)
	p.memory.Append(ctx, *userID, chat.RoleAssistant, answer)
}
