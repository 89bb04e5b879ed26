package database_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/tipsai/internal/database"
	"github.com/edgard/tipsai/internal/logger"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewDB(database.MemoryPath)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	return db
}

func TestStore_ProcessedIDs(t *testing.T) {
	ctx := context.Background()
	store := database.NewStore(newTestDB(t), logger.Discard())

	ids := make([]int64, 0, 1000)
	for i := int64(1); i <= 1000; i++ {
		ids = append(ids, i)
	}
	if err := store.MarkProcessed(ctx, ids, "export"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	// Re-marking is idempotent.
	if err := store.MarkProcessed(ctx, []int64{1, 1001}, "live"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	got, err := store.ProcessedIDs(ctx)
	if err != nil {
		t.Fatalf("ProcessedIDs() error = %v", err)
	}
	if len(got) != 1001 {
		t.Errorf("ProcessedIDs() len = %d, want 1001", len(got))
	}
	if _, ok := got[1001]; !ok {
		t.Error("ProcessedIDs() missing 1001")
	}

	if err := store.ClearProcessed(ctx, "export"); err != nil {
		t.Fatalf("ClearProcessed() error = %v", err)
	}
	got, err = store.ProcessedIDs(ctx)
	if err != nil {
		t.Fatalf("ProcessedIDs() error = %v", err)
	}
	if _, ok := got[1001]; len(got) != 1 || !ok {
		t.Errorf("ProcessedIDs() after clearing export = %v, want only live id 1001", got)
	}
}

func TestStore_Feedback(t *testing.T) {
	ctx := context.Background()
	store := database.NewStore(newTestDB(t), logger.Discard())

	entries := []database.Feedback{
		{UserID: 1, UserName: "Ana", Query: "o que é staking?", ResponsePreview: "Staking é...", Value: database.FeedbackPositive},
		{UserID: 2, UserName: "Bia", Query: "btc", Value: database.FeedbackPositive},
		{UserID: 3, Value: database.FeedbackNegative},
	}
	for i := range entries {
		if err := store.SaveFeedback(ctx, &entries[i]); err != nil {
			t.Fatalf("SaveFeedback() error = %v", err)
		}
		if entries[i].ID == 0 {
			t.Errorf("SaveFeedback() did not set ID for entry %d", i)
		}
	}

	if err := store.SaveFeedback(ctx, &database.Feedback{UserID: 4, Value: "meh"}); err == nil {
		t.Error("SaveFeedback() accepted an invalid value")
	}

	stats, err := store.FeedbackStats(ctx)
	if err != nil {
		t.Fatalf("FeedbackStats() error = %v", err)
	}
	if stats.Positive != 2 || stats.Negative != 1 || stats.Total() != 3 {
		t.Errorf("FeedbackStats() = %+v", stats)
	}
}

func TestStore_Maintenance(t *testing.T) {
	ctx := context.Background()
	store := database.NewStore(newTestDB(t), logger.Discard())

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := store.RunSQLMaintenance(ctx); err != nil {
		t.Fatalf("RunSQLMaintenance() error = %v", err)
	}
	if size, err := store.SizeBytes(ctx); err != nil || size <= 0 {
		t.Errorf("SizeBytes() = %d, %v", size, err)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: "./data/tipsai.db", want: "./data/tipsai.db"},
		{in: "file:./data/tipsai.db?_pragma=busy_timeout(5000)", want: "./data/tipsai.db"},
		{in: "file:my%20db.sqlite", want: "my db.sqlite"},
	}
	for _, tt := range tests {
		if got := database.ExtractDBNameFromPath(tt.in); got != tt.want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
