package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/tipsai/internal/config"
)

// Backends selectable in configuration.
const (
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
)

// Open returns the configured backend. The SQLite backend shares db with
// the bookkeeping tables; pgvector connects to its own database.
func Open(ctx context.Context, cfg config.VectorStoreConfig, db *sqlx.DB, dimension int, log *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(db, cfg.Collection, log), nil
	case BackendPGVector:
		s, err := NewPGVectorStore(ctx, cfg.PostgresURL, cfg.Collection, dimension, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open pgvector store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}
