package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/jmoiron/sqlx"
)

// SQLiteStore keeps vectors in the bot's SQLite database as little-endian
// float32 blobs and ranks them in process.
type SQLiteStore struct {
	db         *sqlx.DB
	collection string
	log        *slog.Logger
}

type chunkRow struct {
	ID           string `db:"id"`
	Collection   string `db:"collection"`
	Text         string `db:"text"`
	Embedding    []byte `db:"embedding"`
	Dimension    int    `db:"dimension"`
	MessageIDs   string `db:"message_ids"`
	Authors      string `db:"authors"`
	StartTime    string `db:"start_time"`
	EndTime      string `db:"end_time"`
	MessageCount int    `db:"message_count"`
	AuthorCount  int    `db:"author_count"`
	Source       string `db:"source"`
}

// NewSQLiteStore opens the named collection in db. The chunks table is
// created by the database migrations.
func NewSQLiteStore(db *sqlx.DB, collection string, log *slog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:         db,
		collection: collection,
		log:        log.With("component", "vectorstore", "backend", "sqlite", "collection", collection),
	}
}

// Search scans the collection, applies the filter and returns the topK
// closest chunks by cosine distance.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, collection, text, embedding, dimension, message_ids, authors,
		       start_time, end_time, message_count, author_count, source
		FROM chunks WHERE collection = ?`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var row chunkRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		meta, err := row.metadata()
		if err != nil {
			s.log.WarnContext(ctx, "Skipping chunk with corrupt metadata", "id", row.ID, "error", err)
			continue
		}
		if !filter.Match(meta) {
			continue
		}
		hits = append(hits, Hit{
			ID:       row.ID,
			Distance: CosineDistance(vector, decodeVector(row.Embedding)),
			Text:     row.Text,
			Metadata: meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	s.log.DebugContext(ctx, "Vector search complete", "hits", len(hits), "filter", filter.String())
	return hits, nil
}

// Upsert writes records in a single transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if s.db == nil {
		return ErrUnavailable
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO chunks (id, collection, text, embedding, dimension, message_ids, authors,
		                    start_time, end_time, message_count, author_count, source)
		VALUES (:id, :collection, :text, :embedding, :dimension, :message_ids, :authors,
		        :start_time, :end_time, :message_count, :author_count, :source)
		ON CONFLICT(id) DO UPDATE SET
			collection = excluded.collection, text = excluded.text, embedding = excluded.embedding,
			dimension = excluded.dimension, message_ids = excluded.message_ids, authors = excluded.authors,
			start_time = excluded.start_time, end_time = excluded.end_time,
			message_count = excluded.message_count, author_count = excluded.author_count,
			source = excluded.source`

	for _, rec := range records {
		row, err := s.toRow(rec)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	s.log.DebugContext(ctx, "Upserted chunks", "count", len(records))
	return nil
}

// Count returns the number of chunks in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrUnavailable
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, s.collection); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// pruneBatch keeps DELETEs under SQLite's bound-parameter limit.
const pruneBatch = 400

// Prune deletes the chunks of source that are not listed in keep.
func (s *SQLiteStore) Prune(ctx context.Context, source string, keep []string) (int, error) {
	if s.db == nil {
		return 0, ErrUnavailable
	}
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM chunks WHERE collection = ? AND source = ?`, s.collection, source); err != nil {
		return 0, fmt.Errorf("failed to list %s chunks: %w", source, err)
	}
	stale := staleIDs(ids, keep)
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(stale); start += pruneBatch {
		q, args, err := sqlx.In(`DELETE FROM chunks WHERE collection = ? AND id IN (?)`,
			s.collection, stale[start:min(start+pruneBatch, len(stale))])
		if err != nil {
			return 0, fmt.Errorf("failed to build prune query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return 0, fmt.Errorf("failed to prune chunks: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	s.log.InfoContext(ctx, "Pruned stale chunks", "source", source, "deleted", len(stale))
	return len(stale), nil
}

// AuthorStats sums message counts per author over the collection.
func (s *SQLiteStore) AuthorStats(ctx context.Context, limit int) ([]AuthorCount, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	var stats []AuthorCount
	err := s.db.SelectContext(ctx, &stats, `
		SELECT je.value AS author, SUM(c.message_count) AS messages
		FROM chunks c, json_each(c.authors) je
		WHERE c.collection = ?
		GROUP BY je.value
		ORDER BY messages DESC, author ASC
		LIMIT ?`, s.collection, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to aggregate author stats: %w", err)
	}
	return stats, nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQLiteStore) Close() error {
	return nil
}

func (s *SQLiteStore) toRow(rec Record) (chunkRow, error) {
	if len(rec.Vector) == 0 {
		return chunkRow{}, fmt.Errorf("chunk %s has no vector", rec.ID)
	}
	ids, err := json.Marshal(rec.Metadata.MessageIDs)
	if err != nil {
		return chunkRow{}, fmt.Errorf("failed to encode message ids: %w", err)
	}
	authors, err := json.Marshal(rec.Metadata.Authors)
	if err != nil {
		return chunkRow{}, fmt.Errorf("failed to encode authors: %w", err)
	}
	source := rec.Metadata.Source
	if source == "" {
		source = SourceExport
	}
	return chunkRow{
		ID:           rec.ID,
		Collection:   s.collection,
		Text:         rec.Text,
		Embedding:    encodeVector(rec.Vector),
		Dimension:    len(rec.Vector),
		MessageIDs:   string(ids),
		Authors:      string(authors),
		StartTime:    rec.Metadata.StartTime,
		EndTime:      rec.Metadata.EndTime,
		MessageCount: rec.Metadata.MessageCount,
		AuthorCount:  rec.Metadata.AuthorCount,
		Source:       source,
	}, nil
}

func (r chunkRow) metadata() (Metadata, error) {
	meta := Metadata{
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		MessageCount: r.MessageCount,
		AuthorCount:  r.AuthorCount,
		Source:       r.Source,
	}
	if err := json.Unmarshal([]byte(r.MessageIDs), &meta.MessageIDs); err != nil {
		return Metadata{}, fmt.Errorf("message_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Authors), &meta.Authors); err != nil {
		return Metadata{}, fmt.Errorf("authors: %w", err)
	}
	return meta, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
