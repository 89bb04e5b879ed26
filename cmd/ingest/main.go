// Package main contains the one-shot ingestion tool. It indexes a Telegram
// Desktop HTML export into the configured vector store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/tipsai/internal/chunker"
	"github.com/edgard/tipsai/internal/config"
	"github.com/edgard/tipsai/internal/database"
	"github.com/edgard/tipsai/internal/gemini"
	"github.com/edgard/tipsai/internal/ingest"
	"github.com/edgard/tipsai/internal/logger"
	"github.com/edgard/tipsai/internal/metrics"
	"github.com/edgard/tipsai/internal/vectorstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	exportPath := flag.String("export", "", "Export directory (defaults to ingest.export_path)")
	reindex := flag.Bool("reindex", false, "Re-ingest every exported message and prune outdated export chunks")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)

	dir := cfg.Ingest.ExportPath
	if *exportPath != "" {
		dir = *exportPath
	}
	if dir == "" {
		log.Error("No export directory given, set -export or ingest.export_path")
		return 1
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	gem, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	vs, err := vectorstore.Open(ctx, cfg.VectorStore, db, gem.Dimension(), log)
	if err != nil {
		log.Error("Failed to open vector store", "backend", cfg.VectorStore.Backend, "error", err)
		return 1
	}
	defer func() {
		if err := vs.Close(); err != nil {
			log.Error("Failed to close vector store", "error", err)
		}
	}()

	svc := ingest.NewService(gem, gem, store, vs, metrics.New(nil), ingest.Options{
		BatchSize:   cfg.Ingest.BatchSize,
		Concurrency: cfg.Ingest.Concurrency,
		Transcribe:  cfg.Ingest.Transcribe,
		Caption:     cfg.Ingest.Caption,
		Chunker: chunker.Options{
			ConversationGap: cfg.Ingest.ConversationGap,
			TargetChars:     cfg.Ingest.TargetChars,
			OverlapChars:    cfg.Ingest.OverlapChars,
		},
	}, log)

	start := time.Now()
	ingestFn := svc.IngestExport
	if *reindex {
		ingestFn = svc.Reindex
	}
	res, err := ingestFn(ctx, dir)
	if err != nil {
		log.Error("Ingestion failed", "dir", dir, "error", err)
		return 1
	}

	total, err := vs.Count(ctx)
	if err != nil {
		log.Warn("Could not count indexed chunks", "error", err)
	}
	log.Info("Ingestion finished",
		"parsed", res.Parsed,
		"new", res.New,
		"transcribed", res.Transcribed,
		"captioned", res.Captioned,
		"chunks", res.Chunks,
		"pruned", res.Pruned,
		"collection_total", total,
		"duration", time.Since(start).Round(time.Millisecond))
	return 0
}
