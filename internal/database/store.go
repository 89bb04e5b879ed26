package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Store is the relational side of the bot: which messages are already
// indexed and what users thought of the answers.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// ProcessedIDs returns the set of message IDs already indexed.
	ProcessedIDs(ctx context.Context) (map[int64]struct{}, error)

	// MarkProcessed records message IDs as indexed. Existing IDs are kept.
	MarkProcessed(ctx context.Context, ids []int64, source string) error

	// ClearProcessed forgets the indexed IDs of one source so they are
	// ingested again.
	ClearProcessed(ctx context.Context, source string) error

	// CountProcessed returns the number of indexed messages.
	CountProcessed(ctx context.Context) (int, error)

	// SaveFeedback records one feedback entry.
	SaveFeedback(ctx context.Context, fb *Feedback) error

	// FeedbackStats returns positive and negative totals.
	FeedbackStats(ctx context.Context) (FeedbackStats, error)

	// SizeBytes returns the database file size.
	SizeBytes(ctx context.Context) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// markBatch keeps INSERTs under SQLite's bound-parameter limit.
const markBatch = 400

// NewStore creates a Store over an open database.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *sqlxStore) ProcessedIDs(ctx context.Context) (map[int64]struct{}, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT message_id FROM processed_messages`); err != nil {
		return nil, fmt.Errorf("failed to load processed ids: %w", err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *sqlxStore) MarkProcessed(ctx context.Context, ids []int64, source string) error {
	if len(ids) == 0 {
		return nil
	}
	if source == "" {
		return errors.New("processed source is required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(ids); start += markBatch {
		end := min(start+markBatch, len(ids))
		batch := ids[start:end]

		values := make([]string, len(batch))
		args := make([]any, 0, 2*len(batch))
		for i, id := range batch {
			values[i] = "(?, ?)"
			args = append(args, id, source)
		}
		q := `INSERT OR IGNORE INTO processed_messages (message_id, source) VALUES ` + strings.Join(values, ", ")
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("failed to mark messages processed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit processed ids: %w", err)
	}
	s.logger.DebugContext(ctx, "Marked messages processed", "count", len(ids), "source", source)
	return nil
}

func (s *sqlxStore) ClearProcessed(ctx context.Context, source string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("failed to clear processed ids: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.InfoContext(ctx, "Cleared processed message ids", "count", n, "source", source)
	return nil
}

func (s *sqlxStore) CountProcessed(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM processed_messages`); err != nil {
		return 0, fmt.Errorf("failed to count processed ids: %w", err)
	}
	return n, nil
}

func (s *sqlxStore) SaveFeedback(ctx context.Context, fb *Feedback) error {
	if fb == nil {
		return errors.New("feedback is nil")
	}
	if fb.Value != FeedbackPositive && fb.Value != FeedbackNegative {
		return fmt.Errorf("invalid feedback value %q", fb.Value)
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO feedback (user_id, user_name, query, response_preview, value)
		VALUES (:user_id, :user_name, :query, :response_preview, :value)`, fb)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		fb.ID = id
	}
	s.logger.InfoContext(ctx, "Feedback saved", "user_id", fb.UserID, "value", fb.Value)
	return nil
}

func (s *sqlxStore) FeedbackStats(ctx context.Context) (FeedbackStats, error) {
	var stats FeedbackStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COALESCE(SUM(CASE WHEN value = 'positive' THEN 1 ELSE 0 END), 0) AS positive,
			COALESCE(SUM(CASE WHEN value = 'negative' THEN 1 ELSE 0 END), 0) AS negative
		FROM feedback`)
	if err != nil {
		return FeedbackStats{}, fmt.Errorf("failed to load feedback stats: %w", err)
	}
	return stats, nil
}

func (s *sqlxStore) SizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.GetContext(ctx, &pageCount, `PRAGMA page_count`); err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := s.db.GetContext(ctx, &pageSize, `PRAGMA page_size`); err != nil {
		return 0, fmt.Errorf("failed to read page size: %w", err)
	}
	return pageCount * pageSize, nil
}

// RunSQLMaintenance executes VACUUM and refreshes planner statistics.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
