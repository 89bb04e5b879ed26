package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// PGVectorStore keeps vectors in Postgres with the pgvector extension and
// lets the database rank them with the <=> cosine operator.
type PGVectorStore struct {
	db         *sqlx.DB
	collection string
	log        *slog.Logger
}

// NewPGVectorStore connects to Postgres and ensures the schema for a
// collection of the given dimension exists.
func NewPGVectorStore(ctx context.Context, dsn, collection string, dimension int, log *slog.Logger) (*PGVectorStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", ErrUnavailable, err)
	}

	s := &PGVectorStore{
		db:         db,
		collection: collection,
		log:        log.With("component", "vectorstore", "backend", "pgvector", "collection", collection),
	}
	if err := s.bootstrap(pingCtx, dimension); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info("pgvector store ready", "host", describe(dsn), "dimension", dimension)
	return s, nil
}

func (s *PGVectorStore) bootstrap(ctx context.Context, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			message_ids JSONB NOT NULL,
			authors JSONB NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			author_count INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT 'export',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS idx_chunks_collection_start ON chunks (collection, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to bootstrap pgvector schema: %w", err)
		}
	}
	return nil
}

// Search ranks the collection by cosine distance inside Postgres.
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	args := []any{pgvector.NewVector(vector), s.collection}
	where, args := filter.sqlWhere(args)
	args = append(args, topK)

	q := fmt.Sprintf(`
		SELECT id, text, embedding <=> $1 AS distance, message_ids, authors,
		       start_time, end_time, message_count, author_count, source
		FROM chunks
		WHERE collection = $2 AND %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, where, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit          Hit
			ids, authors []byte
			messageCount sql.NullInt64
			authorCount  sql.NullInt64
			source       sql.NullString
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &hit.Distance, &ids, &authors,
			&hit.Metadata.StartTime, &hit.Metadata.EndTime, &messageCount, &authorCount, &source); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if err := json.Unmarshal(ids, &hit.Metadata.MessageIDs); err != nil {
			return nil, fmt.Errorf("failed to decode message ids: %w", err)
		}
		if err := json.Unmarshal(authors, &hit.Metadata.Authors); err != nil {
			return nil, fmt.Errorf("failed to decode authors: %w", err)
		}
		hit.Metadata.MessageCount = int(messageCount.Int64)
		hit.Metadata.AuthorCount = int(authorCount.Int64)
		hit.Metadata.Source = source.String
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return hits, nil
}

// Upsert writes records in one transaction.
func (s *PGVectorStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection, text, embedding, message_ids, authors,
		                    start_time, end_time, message_count, author_count, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			collection = EXCLUDED.collection, text = EXCLUDED.text, embedding = EXCLUDED.embedding,
			message_ids = EXCLUDED.message_ids, authors = EXCLUDED.authors,
			start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
			message_count = EXCLUDED.message_count, author_count = EXCLUDED.author_count,
			source = EXCLUDED.source`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		ids, err := json.Marshal(rec.Metadata.MessageIDs)
		if err != nil {
			return fmt.Errorf("failed to encode message ids: %w", err)
		}
		authors, err := json.Marshal(rec.Metadata.Authors)
		if err != nil {
			return fmt.Errorf("failed to encode authors: %w", err)
		}
		source := rec.Metadata.Source
		if source == "" {
			source = SourceExport
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, s.collection, rec.Text, pgvector.NewVector(rec.Vector),
			string(ids), string(authors), rec.Metadata.StartTime, rec.Metadata.EndTime,
			rec.Metadata.MessageCount, rec.Metadata.AuthorCount, source); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Count returns the number of chunks in the collection.
func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chunks WHERE collection = $1`, s.collection); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Prune deletes the chunks of source that are not listed in keep.
func (s *PGVectorStore) Prune(ctx context.Context, source string, keep []string) (int, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM chunks WHERE collection = $1 AND source = $2`, s.collection, source); err != nil {
		return 0, fmt.Errorf("failed to list %s chunks: %w", source, err)
	}
	stale := staleIDs(ids, keep)
	if len(stale) == 0 {
		return 0, nil
	}

	q, args, err := sqlx.In(`DELETE FROM chunks WHERE collection = ? AND id IN (?)`, s.collection, stale)
	if err != nil {
		return 0, fmt.Errorf("failed to build prune query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("failed to prune chunks: %w", err)
	}
	s.log.InfoContext(ctx, "Pruned stale chunks", "source", source, "deleted", len(stale))
	return len(stale), nil
}

// AuthorStats sums message counts per author over the collection.
func (s *PGVectorStore) AuthorStats(ctx context.Context, limit int) ([]AuthorCount, error) {
	var stats []AuthorCount
	err := s.db.SelectContext(ctx, &stats, `
		SELECT a.author, SUM(c.message_count)::int AS messages
		FROM chunks c, jsonb_array_elements_text(c.authors) AS a(author)
		WHERE c.collection = $1
		GROUP BY a.author
		ORDER BY messages DESC, a.author ASC
		LIMIT $2`, s.collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate author stats: %w", err)
	}
	return stats, nil
}

// Close closes the Postgres pool.
func (s *PGVectorStore) Close() error {
	return s.db.Close()
}

// describe strips credentials from a DSN for logging.
func describe(dsn string) string {
	if i := strings.LastIndex(dsn, "@"); i >= 0 {
		return dsn[i+1:]
	}
	return dsn
}
