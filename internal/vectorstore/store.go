// Package vectorstore persists chunk embeddings and answers nearest-neighbour
// queries restricted by metadata filters.
package vectorstore

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable is returned when the collection cannot be queried, for
// example before the first ingestion or while the database is unreachable.
var ErrUnavailable = errors.New("vector store unavailable")

// Source tags where a chunk came from.
const (
	SourceExport = "export"
	SourceLive   = "live"
)

// Metadata is the chunk provenance stored next to each vector. Times are
// ISO timestamps without zone, so they compare lexicographically.
type Metadata struct {
	MessageIDs   []int64  `json:"message_ids"`
	Authors      []string `json:"authors"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	MessageCount int      `json:"message_count"`
	AuthorCount  int      `json:"author_count"`
	Source       string   `json:"source"`
}

// Record is one chunk to upsert.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// Hit is one search result. Distance is the cosine distance to the query.
type Hit struct {
	ID       string
	Distance float64
	Text     string
	Metadata Metadata
}

// Score converts the distance into a similarity in [0, 1] for unit vectors.
func (h Hit) Score() float64 {
	return 1 - h.Distance
}

// AuthorCount is the number of indexed messages in chunks an author took
// part in.
type AuthorCount struct {
	Author   string `db:"author"`
	Messages int    `db:"messages"`
}

// Store is a vector collection.
type Store interface {
	// Search returns up to topK hits ordered by ascending distance.
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error)
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	// Prune deletes the chunks of source whose IDs are not in keep and
	// returns how many were removed.
	Prune(ctx context.Context, source string, keep []string) (int, error)
	// AuthorStats returns the most active authors, most active first.
	AuthorStats(ctx context.Context, limit int) ([]AuthorCount, error)
	Close() error
}

// staleIDs returns the members of ids missing from keep.
func staleIDs(ids, keep []string) []string {
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var stale []string
	for _, id := range ids {
		if _, ok := kept[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

// CosineDistance returns 1 - cos(a, b), matching pgvector's <=> operator.
// Mismatched or zero vectors are treated as orthogonal.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
