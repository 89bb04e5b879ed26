// Package ingest turns Telegram messages into indexed chunks, both from
// Telegram Desktop HTML exports and from messages captured live.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/tipsai/internal/chat"
	"github.com/edgard/tipsai/internal/chunker"
	"github.com/edgard/tipsai/internal/metrics"
	"github.com/edgard/tipsai/internal/vectorstore"
)

// chunkNamespace derives stable chunk IDs so re-ingesting the same
// messages replaces rather than duplicates.
var chunkNamespace = uuid.MustParse("8f0b6c1e-3d44-4d8e-9a55-2f6b7f1f2a90")

// Embedder embeds chunk texts for storage.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Describer turns media files into text. Both methods return an empty
// string on failure.
type Describer interface {
	Transcribe(ctx context.Context, path string) string
	Caption(ctx context.Context, path string) string
}

// Tracker records which message IDs were already indexed.
type Tracker interface {
	ProcessedIDs(ctx context.Context) (map[int64]struct{}, error)
	MarkProcessed(ctx context.Context, ids []int64, source string) error
	ClearProcessed(ctx context.Context, source string) error
}

// Writer is the write side of the vector store.
type Writer interface {
	Upsert(ctx context.Context, records []vectorstore.Record) error
	Prune(ctx context.Context, source string, keep []string) (int, error)
}

// Options tunes ingestion.
type Options struct {
	BatchSize   int
	Concurrency int
	Transcribe  bool
	Caption     bool
	Chunker     chunker.Options
}

// Result summarizes one export ingestion.
type Result struct {
	Parsed      int
	New         int
	Transcribed int
	Captioned   int
	Chunks      int
	Pruned      int
}

// Service ingests messages. Describer and Metrics may be nil.
type Service struct {
	embedder  Embedder
	describer Describer
	tracker   Tracker
	writer    Writer
	metrics   *metrics.Metrics
	chunker   *chunker.Chunker
	opts      Options
	log       *slog.Logger
}

// NewService creates an ingestion service.
func NewService(embedder Embedder, describer Describer, tracker Tracker, writer Writer, m *metrics.Metrics, opts Options, log *slog.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Service{
		embedder:  embedder,
		describer: describer,
		tracker:   tracker,
		writer:    writer,
		metrics:   m,
		chunker:   chunker.New(opts.Chunker),
		opts:      opts,
		log:       log.With("component", "ingest_service"),
	}
}

// IngestExport parses the export in dir and indexes every message not yet
// processed.
func (s *Service) IngestExport(ctx context.Context, dir string) (Result, error) {
	messages, err := s.parse(ctx, dir)
	if err != nil {
		return Result{}, err
	}
	res, _, err := s.ingestExport(ctx, dir, messages)
	return res, err
}

func (s *Service) parse(ctx context.Context, dir string) ([]chat.Message, error) {
	s.log.InfoContext(ctx, "Parsing HTML export", "dir", dir)
	return ParseExport(dir)
}

// ingestExport indexes the unprocessed messages of a parsed export and
// returns the IDs of the chunks it wrote.
func (s *Service) ingestExport(ctx context.Context, dir string, messages []chat.Message) (Result, []string, error) {
	res := Result{Parsed: len(messages)}

	processed, err := s.tracker.ProcessedIDs(ctx)
	if err != nil {
		return res, nil, fmt.Errorf("failed to load processed ids: %w", err)
	}
	fresh := messages[:0]
	for _, m := range messages {
		if _, done := processed[m.ID]; !done {
			fresh = append(fresh, m)
		}
	}
	res.New = len(fresh)
	if res.New == 0 {
		s.log.InfoContext(ctx, "No new messages to ingest", "parsed", res.Parsed)
		return res, nil, nil
	}
	s.log.InfoContext(ctx, "New messages to ingest", "parsed", res.Parsed, "new", res.New)

	res.Transcribed, res.Captioned, err = s.describeMedia(ctx, dir, fresh)
	if err != nil {
		return res, nil, err
	}

	ids, err := s.ingest(ctx, fresh, vectorstore.SourceExport)
	res.Chunks = len(ids)
	if err != nil {
		return res, nil, err
	}
	s.log.InfoContext(ctx, "Export ingestion complete",
		"chunks", res.Chunks, "transcribed", res.Transcribed, "captioned", res.Captioned)
	return res, ids, nil
}

// Reindex re-ingests every exported message. Export chunks are replaced in
// place and the ones the new pass no longer produces are pruned afterwards.
// Live chunks and their processed IDs are left alone, and a failed pass
// leaves the collection as it was.
func (s *Service) Reindex(ctx context.Context, dir string) (Result, error) {
	s.log.InfoContext(ctx, "Reindexing collection", "dir", dir)
	messages, err := s.parse(ctx, dir)
	if err != nil {
		return Result{}, err
	}
	if err := s.tracker.ClearProcessed(ctx, vectorstore.SourceExport); err != nil {
		return Result{}, fmt.Errorf("failed to clear processed ids: %w", err)
	}

	res, ids, err := s.ingestExport(ctx, dir, messages)
	if err != nil {
		return res, err
	}
	if len(ids) == 0 {
		return res, nil
	}
	res.Pruned, err = s.writer.Prune(ctx, vectorstore.SourceExport, ids)
	if err != nil {
		return res, fmt.Errorf("failed to prune stale chunks: %w", err)
	}
	s.log.InfoContext(ctx, "Reindex complete", "chunks", res.Chunks, "pruned", res.Pruned)
	return res, nil
}

// describeMedia appends transcriptions of voice messages and captions of
// photos in place. Individual failures are skipped.
func (s *Service) describeMedia(ctx context.Context, dir string, messages []chat.Message) (int, int, error) {
	if s.describer == nil || (!s.opts.Transcribe && !s.opts.Caption) {
		return 0, 0, nil
	}

	var transcribed, captioned atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range messages {
		m := &messages[i]
		if m.MediaPath == "" {
			continue
		}
		switch {
		case m.Media == chat.MediaVoice && s.opts.Transcribe:
			g.Go(func() error {
				text := s.describer.Transcribe(gctx, filepath.Join(dir, m.MediaPath))
				if text != "" {
					*m = m.Augment(chat.TranscriptionLabel, text)
					transcribed.Add(1)
				}
				return gctx.Err()
			})
		case m.Media == chat.MediaPhoto && s.opts.Caption:
			g.Go(func() error {
				text := s.describer.Caption(gctx, filepath.Join(dir, m.MediaPath))
				if text != "" {
					*m = m.Augment(chat.CaptionLabel, text)
					captioned.Add(1)
				}
				return gctx.Err()
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("media description interrupted: %w", err)
	}
	s.log.InfoContext(ctx, "Media described", "transcribed", transcribed.Load(), "captioned", captioned.Load())
	return int(transcribed.Load()), int(captioned.Load()), nil
}

// IngestMessages chunks, embeds and stores messages, then marks them
// processed. It returns the number of chunks written.
func (s *Service) IngestMessages(ctx context.Context, messages []chat.Message, source string) (int, error) {
	ids, err := s.ingest(ctx, messages, source)
	return len(ids), err
}

// ingest returns the IDs of the chunks it wrote.
func (s *Service) ingest(ctx context.Context, messages []chat.Message, source string) ([]string, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	sorted := make([]chat.Message, len(messages))
	copy(sorted, messages)
	chat.SortByID(sorted)

	chunks := s.chunker.Chunk(sorted)
	if len(chunks) == 0 {
		s.log.InfoContext(ctx, "No chunks produced", "messages", len(messages), "source", source)
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		batch := chunks[start:min(start+s.opts.BatchSize, len(chunks))]
		g.Go(func() error {
			return s.storeBatch(gctx, batch, source)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(sorted))
	for i, m := range sorted {
		ids[i] = m.ID
	}
	written := make([]string, len(chunks))
	for i, c := range chunks {
		written[i] = ChunkID(c.MessageIDs)
	}
	if err := s.tracker.MarkProcessed(ctx, ids, source); err != nil {
		return written, fmt.Errorf("failed to mark messages processed: %w", err)
	}

	s.metrics.RecordChunksIngested(source, len(chunks))
	s.log.InfoContext(ctx, "Messages ingested", "messages", len(sorted), "chunks", len(chunks), "source", source)
	return written, nil
}

func (s *Service) storeBatch(ctx context.Context, batch []chunker.Chunk, source string) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed size mismatch: got %d want %d", len(vectors), len(batch))
	}

	records := make([]vectorstore.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorstore.Record{
			ID:     ChunkID(c.MessageIDs),
			Vector: vectors[i],
			Text:   c.Text,
			Metadata: vectorstore.Metadata{
				MessageIDs:   c.MessageIDs,
				Authors:      c.Authors,
				StartTime:    c.StartISO(),
				EndTime:      c.EndISO(),
				MessageCount: c.MessageCount,
				AuthorCount:  c.AuthorCount,
				Source:       source,
			},
		}
	}
	if err := s.writer.Upsert(ctx, records); err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}
	s.log.DebugContext(ctx, "Batch stored", "chunks", len(batch))
	return nil
}

// ChunkID derives a stable record ID from the chunk's message IDs.
func ChunkID(messageIDs []int64) string {
	parts := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return uuid.NewSHA1(chunkNamespace, []byte(strings.Join(parts, ","))).String()
}
