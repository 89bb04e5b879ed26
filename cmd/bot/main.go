// Package main contains the entrypoint of the TipsAI Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/tipsai/internal/bot"
	"github.com/edgard/tipsai/internal/bot/handlers"
	"github.com/edgard/tipsai/internal/bot/tasks"
	"github.com/edgard/tipsai/internal/chunker"
	"github.com/edgard/tipsai/internal/config"
	"github.com/edgard/tipsai/internal/database"
	"github.com/edgard/tipsai/internal/gemini"
	"github.com/edgard/tipsai/internal/httpserver"
	"github.com/edgard/tipsai/internal/ingest"
	"github.com/edgard/tipsai/internal/logger"
	"github.com/edgard/tipsai/internal/memory"
	"github.com/edgard/tipsai/internal/metrics"
	"github.com/edgard/tipsai/internal/rag"
	"github.com/edgard/tipsai/internal/ratelimit"
	"github.com/edgard/tipsai/internal/telegram"
	"github.com/edgard/tipsai/internal/vectorstore"
	"github.com/edgard/tipsai/internal/websearch"
)

const (
	updateWorkers   = 4
	feedbackEntries = 1000
	feedbackTTL     = 24 * time.Hour
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes every component, runs the bot until ctx is cancelled and
// returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	loc, err := time.LoadLocation(cfg.Ingest.Timezone)
	if err != nil {
		log.Error("Invalid ingest timezone", "timezone", cfg.Ingest.Timezone, "error", err)
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

	m := metrics.New(nil)

	var web websearch.Searcher
	if cfg.WebSearch.Enabled {
		web = websearch.NewClient(cfg.WebSearch.Endpoint, cfg.WebSearch.Region, cfg.WebSearch.Timeout, log)
	}

	mem := memory.New(memory.Options{
		MaxHistory: cfg.Memory.MaxHistory,
		TTL:        cfg.Memory.TTL,
		Condense:   cfg.Memory.Condensation,
		Condenser:  gem,
		Logger:     log,
	})

	pipeline := rag.New(rag.Deps{
		Index:     vs,
		Embedder:  gem,
		Generator: gem,
		Memory:    mem,
		Web:       web,
		Metrics:   m,
		Logger:    log,
	}, rag.Options{
		TopK:          cfg.RAG.TopK,
		MinScore:      cfg.RAG.MinScore,
		Rerank:        cfg.RAG.Rerank,
		RerankMinimum: cfg.RAG.RerankMinimum,
		CacheSize:     cfg.RAG.CacheSize,
		CacheTTL:      cfg.RAG.CacheTTL,
		MaxTokens:     cfg.RAG.MaxTokens,
		WebMaxResults: cfg.WebSearch.MaxResults,
		Model:         gem.Model(),
		FallbackModel: gem.FallbackModel(),
	})

	ingester := ingest.NewService(gem, gem, store, vs, m, ingestOptions(cfg.Ingest), log)

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		Pipeline:  pipeline,
		Limiter:   ratelimit.New(ratelimit.Options{MaxRequests: cfg.RateLimit.MaxRequests, Window: cfg.RateLimit.Window, CleanupEvery: cfg.RateLimit.CleanupEvery}),
		Memory:    mem,
		Metrics:   m,
		Reindexer: ingester,
		Chunks:    vs,
		Feedback:  handlers.NewFeedbackTracker(feedbackEntries, feedbackTTL),
		Location:  loc,
	}
	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Config:   cfg,
		Pipeline: pipeline,
	}

	var live *ingest.Live
	if cfg.Ingest.LiveEnabled {
		live = ingest.NewLive(ingest.NewBuffer(cfg.Ingest.LiveBatchThreshold, cfg.Ingest.LiveFlushInterval, nil), ingester, log)
		hDeps.Live = live
		tDeps.Live = live
		log.Info("Live ingestion enabled", "threshold", cfg.Ingest.LiveBatchThreshold, "flush_interval", cfg.Ingest.LiveFlushInterval)
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewMentionHandler(hDeps)),
		tgbot.WithWorkers(updateWorkers),
	)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	tDeps.Sender = tg

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), gocron.WithLogger(logger.NewGocronLogger(log)))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var srv bot.Runner
	if cfg.HTTP.Enabled {
		srv = httpserver.New(cfg.HTTP.Addr, m, vs, gem.Model(), log)
	}
	var flusher bot.Flusher
	if live != nil {
		flusher = live
	}

	app := bot.NewBot(log, tg, sched, srv, flusher)

	log.Info("Starting bot", "model", gem.Model(), "vector_store", cfg.VectorStore.Backend)
	runErr := app.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Bot stopped gracefully")
	return 0
}

func ingestOptions(cfg config.IngestConfig) ingest.Options {
	return ingest.Options{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Transcribe:  cfg.Transcribe,
		Caption:     cfg.Caption,
		Chunker: chunker.Options{
			ConversationGap: cfg.ConversationGap,
			TargetChars:     cfg.TargetChars,
			OverlapChars:    cfg.OverlapChars,
		},
	}
}
